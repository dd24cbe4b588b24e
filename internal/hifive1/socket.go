package hifive1

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// ClearSocketPath removes a stale socket file at path. A pre-existing
// file that is not a socket aborts the run before the executor starts.
func ClearSocketPath(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFSOCK {
		return fmt.Errorf("refusing to replace %s: exists and is not a socket", path)
	}
	return os.Remove(path)
}

// ServeUnixSocket maps a UART channel pair onto a local byte-stream
// socket, full duplex. Guest transmit bytes appear on the connection's
// write side; bytes read from the connection feed the guest's receive
// queue. A dropped connection is tolerated: the writer parks until the
// next accept.
func ServeUnixSocket(path string, ch IOChannel) error {
	if err := ClearSocketPath(path); err != nil {
		return err
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", path, err)
	}
	slog.Debug("uart socket listening", "path", path)

	// Buffered so the accept loop can hand over a connection and start
	// reading from it before the guest has transmitted anything.
	conns := make(chan net.Conn, 1)

	var g errgroup.Group
	g.Go(func() error {
		// Drain guest transmit bytes onto whichever connection is
		// current; on a write error, wait for the next one.
		var conn net.Conn
		for b := range ch.Out {
			for {
				if conn == nil {
					var ok bool
					if conn, ok = <-conns; !ok {
						return nil
					}
				}
				if _, err := conn.Write([]byte{b}); err != nil {
					conn = nil
					continue
				}
				break
			}
		}
		return nil
	})
	g.Go(func() error {
		defer close(conns)
		for {
			conn, err := listener.Accept()
			if err != nil {
				return fmt.Errorf("accept on %s: %w", path, err)
			}
			// Replace a handed-over connection the writer never picked
			// up; it is already closed.
			select {
			case <-conns:
			default:
			}
			conns <- conn
			var buf [1]byte
			for {
				if _, err := conn.Read(buf[:]); err != nil {
					break
				}
				ch.In <- buf[0]
			}
			conn.Close()
			slog.Debug("uart socket peer disconnected", "path", path)
		}
	})

	go func() {
		if err := g.Wait(); err != nil {
			slog.Error("uart socket stopped", "path", path, "err", err)
		}
	}()
	return nil
}
