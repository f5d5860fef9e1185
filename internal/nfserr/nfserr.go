// Package nfserr centralizes the server's error taxonomy: translating
// filesystem errors (ENOENT, EEXIST, ...) and internal conditions (stale
// handle, access denied) into the version-specific NFS status codes. The
// MSG_ACCEPTED/MSG_DENIED reply shapes are built in internal/rpc.
package nfserr

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
)

// NFSv3 status codes (RFC 1813 §2.6). NFSv2 reuses the same small integers
// for the errors it shares; no separate NFSv2-only list is kept.
const (
	NFS3OK             = 0
	NFS3ErrPerm        = 1
	NFS3ErrNoEnt       = 2
	NFS3ErrIO          = 5
	NFS3ErrNXIO        = 6
	NFS3ErrAcces       = 13
	NFS3ErrExist       = 17
	NFS3ErrXDev        = 18
	NFS3ErrNoDev       = 19
	NFS3ErrNotDir      = 20
	NFS3ErrIsDir       = 21
	NFS3ErrInval       = 22
	NFS3ErrFBig        = 27
	NFS3ErrNoSpc       = 28
	NFS3ErrROFS        = 30
	NFS3ErrMLink       = 31
	NFS3ErrNameTooLong = 63
	NFS3ErrNotEmpty    = 66
	NFS3ErrDQuot       = 69
	NFS3ErrStale       = 70
	NFS3ErrRemote      = 71
	NFS3ErrBadHandle   = 10001
	NFS3ErrNotSync     = 10002
	NFS3ErrBadCookie   = 10003
	NFS3ErrNotSupp     = 10004
	NFS3ErrTooSmall    = 10005
	NFS3ErrServerFault = 10006
	NFS3ErrBadType     = 10007
	NFS3ErrJukebox     = 10008
)

// NFSv4 status codes (RFC 7530 §13.2) relevant to the stateless subset
// implemented here.
const (
	NFS4OK             = 0
	NFS4ErrPerm        = 1
	NFS4ErrNoEnt       = 2
	NFS4ErrIO          = 5
	NFS4ErrAccess      = 13
	NFS4ErrExist       = 17
	NFS4ErrXDev        = 18
	NFS4ErrNotDir      = 20
	NFS4ErrIsDir       = 21
	NFS4ErrInval       = 22
	NFS4ErrFBig        = 27
	NFS4ErrNoSpc       = 28
	NFS4ErrROFS        = 30
	NFS4ErrMLink       = 31
	NFS4ErrNameTooLong = 63
	NFS4ErrNotEmpty    = 66
	NFS4ErrDQuot       = 69
	NFS4ErrStale       = 70
	NFS4ErrBadHandle   = 10001
	NFS4ErrBadCookie   = 10003
	NFS4ErrNotSupp     = 10004
	NFS4ErrServerFault = 10006
	NFS4ErrBadXDR      = 10036
	NFS4ErrResource    = 10018
	NFS4ErrOpIllegal   = 10044
	NFS4ErrMinorVersMismatch = 10043
	NFS4ErrNoFileHandle = 10020
)

// FromPathError maps an os/fs error returned by a VFS call to the
// version-appropriate NFS status, defaulting to IO for anything unrecognized
// so a bug never surfaces as a silent success.
func FromPathError(v3 bool, err error) uint32 {
	switch {
	case err == nil:
		if v3 {
			return NFS3OK
		}
		return NFS4OK
	case errors.Is(err, fs.ErrNotExist):
		return pick(v3, NFS3ErrNoEnt, NFS4ErrNoEnt)
	case errors.Is(err, fs.ErrExist):
		return pick(v3, NFS3ErrExist, NFS4ErrExist)
	case errors.Is(err, fs.ErrPermission):
		return pick(v3, NFS3ErrAcces, NFS4ErrAccess)
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT:
			return pick(v3, NFS3ErrNoEnt, NFS4ErrNoEnt)
		case syscall.EEXIST:
			return pick(v3, NFS3ErrExist, NFS4ErrExist)
		case syscall.EACCES:
			return pick(v3, NFS3ErrAcces, NFS4ErrAccess)
		case syscall.ENOTDIR:
			return pick(v3, NFS3ErrNotDir, NFS4ErrNotDir)
		case syscall.EISDIR:
			return pick(v3, NFS3ErrIsDir, NFS4ErrIsDir)
		case syscall.ENOTEMPTY:
			return pick(v3, NFS3ErrNotEmpty, NFS4ErrNotEmpty)
		case syscall.ENOSPC:
			return pick(v3, NFS3ErrNoSpc, NFS4ErrNoSpc)
		case syscall.EROFS:
			return pick(v3, NFS3ErrROFS, NFS4ErrROFS)
		case syscall.EDQUOT:
			return pick(v3, NFS3ErrDQuot, NFS4ErrDQuot)
		case syscall.EXDEV:
			return pick(v3, NFS3ErrXDev, NFS4ErrXDev)
		case syscall.EMLINK:
			return pick(v3, NFS3ErrMLink, NFS4ErrMLink)
		case syscall.ENAMETOOLONG:
			return pick(v3, NFS3ErrNameTooLong, NFS4ErrNameTooLong)
		case syscall.EIO:
			return pick(v3, NFS3ErrIO, NFS4ErrIO)
		case syscall.EINVAL:
			return pick(v3, NFS3ErrInval, NFS4ErrInval)
		}
	}

	if linkErr, ok := err.(*os.LinkError); ok {
		return FromPathError(v3, linkErr.Err)
	}

	return pick(v3, NFS3ErrIO, NFS4ErrIO)
}

func pick(v3 bool, a, b uint32) uint32 {
	if v3 {
		return a
	}
	return b
}
