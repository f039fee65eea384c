// Ancillary descriptor forwarding: X11 clients occasionally pass file
// descriptors (DRI3/Present buffers, XDND selection files) over
// SCM_RIGHTS on the Unix-domain socket. RecvWithFDs/SendWithFDs read and
// write such messages with net.UnixConn's ReadMsgUnix/WriteMsgUnix, using
// golang.org/x/sys/unix to parse and build the control messages. The
// Server's pump loops do not call them: they move bytes with plain
// net.Conn Read/Write, so descriptors passed by either peer are not
// relayed to the other side.
//
// Grounded on the golang.org/x/sys usage pattern in
// _examples/m-lab-tcp-info and _examples/runZeroInc-conniver (raw
// Recvmsg/Sendmsg-style socket option plumbing).
package xproxy

import (
	"net"

	"golang.org/x/sys/unix"
)

// MaxAncillaryFDs sizes the control-message buffer RecvWithFDs reads into,
// so at most 16 descriptors are received per message (SPEC_FULL.md §11,
// capacity 16 per direction).
const MaxAncillaryFDs = 16

// RecvWithFDs reads one message off a Unix-domain socket along with any
// SCM_RIGHTS file descriptors it carried.
func RecvWithFDs(conn *net.UnixConn, buf []byte) (n int, fds []int, err error) {
	oob := make([]byte, unix.CmsgSpace(MaxAncillaryFDs*4))
	n, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return n, nil, err
	}
	if oobn == 0 {
		return n, nil, nil
	}
	msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return n, nil, err
	}
	for _, m := range msgs {
		got, err := unix.ParseUnixRights(&m)
		if err != nil {
			continue
		}
		fds = append(fds, got...)
	}
	return n, fds, nil
}

// SendWithFDs writes p to conn, attaching fds as an SCM_RIGHTS control
// message if any were given.
func SendWithFDs(conn *net.UnixConn, p []byte, fds []int) error {
	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	_, _, err := conn.WriteMsgUnix(p, oob, nil)
	return err
}
