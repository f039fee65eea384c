// Ancillary descriptor forwarding: X11 clients occasionally pass file
// descriptors (DRI3/Present buffers, XDND selection files) over
// SCM_RIGHTS on the Unix-domain socket. xtrace must relay these untouched
// alongside the byte stream (SPEC_FULL.md §6, §13), which requires
// dropping to golang.org/x/sys/unix since net.UnixConn's ReadMsgUnix
// surfaces the bytes but not a convenient resend path for the parsed fds.
//
// Grounded on the golang.org/x/sys usage pattern in
// _examples/m-lab-tcp-info and _examples/runZeroInc-conniver (raw
// Recvmsg/Sendmsg-style socket option plumbing).
package xproxy

import (
	"net"

	"golang.org/x/sys/unix"
)

// MaxAncillaryFDs bounds how many descriptors a single SCM_RIGHTS message
// may carry before xtrace refuses to relay it (SPEC_FULL.md §11, capacity
// 16 per direction).
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


