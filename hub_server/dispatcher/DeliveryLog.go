package dispatcher

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"pubhub/common/connection"
	"pubhub/common/logger"
)

// DeliveryLog is the append-only record of successful deliveries, one line
// per frame. It is written only from the dispatcher's observer callback; a
// failed append is logged and ignored, never fatal.
type DeliveryLog struct {
	file   *os.File
	lock   *sync.Mutex
	logger *logger.SimpleLogger
}

func NewDeliveryLog(path string, deliveryLogger *logger.SimpleLogger) (*DeliveryLog, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open delivery log "+path)
	}
	return &DeliveryLog{
		file:   file,
		lock:   new(sync.Mutex),
		logger: deliveryLogger,
	}, nil
}

// Record appends `<ts> - Message to <peer-address>: <message>`.
func (l *DeliveryLog) Record(conn connection.IConnection, frame []byte) {
	entry := fmt.Sprintf("%s - Message to %s: %s\n",
		time.Now().Format("2006-01-02 15:04:05"), conn.Address(), frame)
	l.lock.Lock()
	defer l.lock.Unlock()
	if _, err := l.file.WriteString(entry); err != nil {
		l.logger.Printf("failed to write into delivery log: %s", err.Error())
	}
}

func (l *DeliveryLog) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.file.Close()
}
