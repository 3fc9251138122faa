package tcp

import (
	"net"
	"sync"
	"testing"
	"time"

	"pubhub/common/test_utils"
)

func TestTCPConnectionFraming(t *testing.T) {
	test_utils.NewTestGroup("TCPConnection", "line framing over a byte stream").Cases([]*test_utils.Assertion{
		test_utils.NewTestCase("coalesced frames", "one read carrying several messages yields each separately", func() bool {
			local, remote := net.Pipe()
			conn := NewTCPConnection(local)
			var lock sync.Mutex
			var frames []string
			conn.OnMessage(func(frame []byte) {
				lock.Lock()
				frames = append(frames, string(frame))
				lock.Unlock()
			})
			go conn.ReadLoop()
			go func() {
				remote.Write([]byte("first\nsecond\nthird\n"))
			}()
			ok := test_utils.WaitUntil(time.Second, func() bool {
				lock.Lock()
				defer lock.Unlock()
				return len(frames) == 3
			})
			conn.Close()
			remote.Close()
			lock.Lock()
			defer lock.Unlock()
			return ok && frames[0] == "first" && frames[1] == "second" && frames[2] == "third"
		}),
		test_utils.NewTestCase("split frame", "a message arriving in pieces is reassembled", func() bool {
			local, remote := net.Pipe()
			conn := NewTCPConnection(local)
			var lock sync.Mutex
			var frames []string
			conn.OnMessage(func(frame []byte) {
				lock.Lock()
				frames = append(frames, string(frame))
				lock.Unlock()
			})
			go conn.ReadLoop()
			go func() {
				remote.Write([]byte(`{"type":"regi`))
				time.Sleep(10 * time.Millisecond)
				remote.Write([]byte("ster\"}\n"))
			}()
			ok := test_utils.WaitUntil(time.Second, func() bool {
				lock.Lock()
				defer lock.Unlock()
				return len(frames) == 1
			})
			conn.Close()
			remote.Close()
			lock.Lock()
			defer lock.Unlock()
			return ok && frames[0] == `{"type":"register"}`
		}),
		test_utils.NewTestCase("write terminates frames", "", func() bool {
			local, remote := net.Pipe()
			conn := NewTCPConnection(local)
			received := make(chan []byte, 1)
			go func() {
				buffer := make([]byte, 64)
				n, err := remote.Read(buffer)
				if err == nil {
					received <- buffer[:n]
				}
			}()
			if err := conn.Write([]byte("hello")); err != nil {
				return false
			}
			select {
			case frame := <-received:
				conn.Close()
				remote.Close()
				return string(frame) == "hello\n"
			case <-time.After(time.Second):
				return false
			}
		}),
		test_utils.NewTestCase("peer close fires close callback once", "", func() bool {
			local, remote := net.Pipe()
			conn := NewTCPConnection(local)
			var lock sync.Mutex
			closeCount := 0
			conn.OnClose(func(err error) {
				lock.Lock()
				closeCount++
				lock.Unlock()
			})
			go conn.ReadLoop()
			remote.Close()
			ok := test_utils.WaitUntil(time.Second, func() bool {
				lock.Lock()
				defer lock.Unlock()
				return closeCount == 1
			})
			conn.Close()
			lock.Lock()
			defer lock.Unlock()
			return ok && closeCount == 1 && !conn.IsLive()
		}),
		test_utils.NewTestCase("write on closed connection", "", func() bool {
			local, remote := net.Pipe()
			conn := NewTCPConnection(local)
			conn.Close()
			remote.Close()
			return conn.Write([]byte("late")) != nil
		}),
	}).Do(t)
}
