// Package vfs implements the uniform filesystem adapter ("VFS
// adapter": stat/read/write/readdir/mkdir/rmdir/rename/symlink/readlink/
// truncate primitives over a local directory tree, used by every NFS
// procedure handler so the protocol layer never touches os/syscall directly.
package vfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"
)

// FileType mirrors the NFS type enum (RFC 1813 §2.5) at the VFS boundary.
type FileType int

const (
	TypeRegular FileType = iota
	TypeDirectory
	TypeSymlink
	TypeBlockDev
	TypeCharDev
	TypeSocket
	TypeFIFO
)

// Attr is the version-agnostic attribute set a handler converts into
// fattr2/fattr3/NFSv4 bitmap-encoded attrs.
type Attr struct {
	Type    FileType
	Mode    uint32
	Nlink   uint32
	UID     uint32
	GID     uint32
	Size    uint64
	Used    uint64
	Fsid    uint64
	Fileid  uint64
	Atime   time.Time
	Mtime   time.Time
	Ctime   time.Time
	Rdev    uint64
}

// DirEntry is one entry returned by Readdir.
type DirEntry struct {
	Name   string
	Fileid uint64
	Cookie uint64
}

// SetAttr carries the optional fields of an NFS SETATTR request; nil/false
// fields are left unchanged.
type SetAttr struct {
	Mode  *uint32
	UID   *uint32
	GID   *uint32
	Size  *uint64
	Atime *time.Time
	Mtime *time.Time
}

// Statfs reports filesystem-wide capacity, for FSSTAT.
type Statfs struct {
	TotalBytes uint64
	FreeBytes  uint64
	AvailBytes uint64
	TotalFiles uint64
	FreeFiles  uint64
	AvailFiles uint64
}

// VFS is the adapter surface every NFS procedure handler is built against.
// All paths are absolute, canonicalized paths (see internal/export); the
// VFS layer does not itself enforce export policy.
type VFS interface {
	Stat(path string) (Attr, error)
	Lookup(dir, name string) (string, Attr, error)
	Readlink(path string) (string, error)
	Read(path string, offset int64, count int) ([]byte, bool, error)
	Write(path string, offset int64, data []byte, sync bool) (int, error)
	Create(dir, name string, mode uint32, exclusive bool) (string, Attr, error)
	Mkdir(dir, name string, mode uint32) (string, Attr, error)
	Symlink(dir, name, target string, mode uint32) (string, Attr, error)
	Remove(dir, name string) error
	Rmdir(dir, name string) error
	Rename(fromDir, fromName, toDir, toName string) error
	Link(path, dir, name string) error
	Readdir(path string, cookie uint64, max int) ([]DirEntry, bool, error)
	SetAttr(path string, attr SetAttr) (Attr, error)
	Truncate(path string, size uint64) error
	Commit(path string, offset int64, count int) error
	StatFS(path string) (Statfs, error)
}

// Local implements VFS over a real directory tree rooted at Root.
type Local struct {
	Root string
}

// NewLocal returns a Local adapter rooted at root. root must already exist.
func NewLocal(root string) *Local {
	return &Local{Root: filepath.Clean(root)}
}

func (l *Local) Stat(path string) (Attr, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return Attr{}, err
	}
	return attrFromFileInfo(fi), nil
}

func (l *Local) Lookup(dir, name string) (string, Attr, error) {
	child := filepath.Join(dir, name)
	attr, err := l.Stat(child)
	if err != nil {
		return "", Attr{}, err
	}
	return child, attr, nil
}

func (l *Local) Readlink(path string) (string, error) {
	return os.Readlink(path)
}

func (l *Local) Read(path string, offset int64, count int) ([]byte, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	buf := make([]byte, count)
	n, err := f.ReadAt(buf, offset)
	eof := false
	if err == io.EOF {
		eof = true
		err = nil
	}
	if err != nil {
		return nil, false, err
	}
	if n < count {
		eof = true
	}
	return buf[:n], eof, nil
}

func (l *Local) Write(path string, offset int64, data []byte, sync bool) (int, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := f.WriteAt(data, offset)
	if err != nil {
		return n, err
	}
	if sync {
		if err := f.Sync(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (l *Local) Create(dir, name string, mode uint32, exclusive bool) (string, Attr, error) {
	path := filepath.Join(dir, name)
	flags := os.O_CREATE | os.O_WRONLY
	if exclusive {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, os.FileMode(mode))
	if err != nil {
		return "", Attr{}, err
	}
	f.Close()
	attr, err := l.Stat(path)
	return path, attr, err
}

func (l *Local) Mkdir(dir, name string, mode uint32) (string, Attr, error) {
	path := filepath.Join(dir, name)
	if err := os.Mkdir(path, os.FileMode(mode)); err != nil {
		return "", Attr{}, err
	}
	attr, err := l.Stat(path)
	return path, attr, err
}

func (l *Local) Symlink(dir, name, target string, mode uint32) (string, Attr, error) {
	path := filepath.Join(dir, name)
	if err := os.Symlink(target, path); err != nil {
		return "", Attr{}, err
	}
	attr, err := l.Stat(path)
	return path, attr, err
}

func (l *Local) Remove(dir, name string) error {
	path := filepath.Join(dir, name)
	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return &os.PathError{Op: "remove", Path: path, Err: syscall.EISDIR}
	}
	return os.Remove(path)
}

func (l *Local) Rmdir(dir, name string) error {
	path := filepath.Join(dir, name)
	return os.Remove(path)
}

func (l *Local) Rename(fromDir, fromName, toDir, toName string) error {
	oldPath := filepath.Join(fromDir, fromName)
	newPath := filepath.Join(toDir, toName)
	if filepath.VolumeName(oldPath) != filepath.VolumeName(newPath) {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: syscall.EXDEV}
	}
	return os.Rename(oldPath, newPath)
}

func (l *Local) Link(path, dir, name string) error {
	newPath := filepath.Join(dir, name)
	return os.Link(path, newPath)
}

func (l *Local) Readdir(path string, cookie uint64, max int) ([]DirEntry, bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, false, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	all := make([]DirEntry, 0, len(entries)+2)
	all = append(all, DirEntry{Name: ".", Cookie: 1}, DirEntry{Name: "..", Cookie: 2})
	for i, e := range entries {
		all = append(all, DirEntry{Name: e.Name(), Cookie: uint64(i) + 3})
	}

	start := 0
	if cookie != 0 {
		start = len(all)
		for i, e := range all {
			if e.Cookie == cookie {
				start = i + 1
				break
			}
		}
	}
	if start > len(all) {
		return nil, true, fmt.Errorf("vfs: bad cookie %d", cookie)
	}

	end := start + max
	eof := true
	if end < len(all) {
		eof = false
	} else {
		end = len(all)
	}

	batch := all[start:end]
	for i := range batch {
		fi, err := os.Lstat(filepath.Join(path, batch[i].Name))
		if err == nil {
			batch[i].Fileid = inodeOf(fi)
		}
	}
	return batch, eof, nil
}

func (l *Local) SetAttr(path string, attr SetAttr) (Attr, error) {
	if attr.Mode != nil {
		if err := os.Chmod(path, os.FileMode(*attr.Mode)); err != nil {
			return Attr{}, err
		}
	}
	if attr.UID != nil || attr.GID != nil {
		uid, gid := -1, -1
		if attr.UID != nil {
			uid = int(*attr.UID)
		}
		if attr.GID != nil {
			gid = int(*attr.GID)
		}
		if err := os.Chown(path, uid, gid); err != nil {
			return Attr{}, err
		}
	}
	if attr.Size != nil {
		if err := os.Truncate(path, int64(*attr.Size)); err != nil {
			return Attr{}, err
		}
	}
	if attr.Atime != nil || attr.Mtime != nil {
		cur, err := l.Stat(path)
		if err != nil {
			return Attr{}, err
		}
		atime, mtime := cur.Atime, cur.Mtime
		if attr.Atime != nil {
			atime = *attr.Atime
		}
		if attr.Mtime != nil {
			mtime = *attr.Mtime
		}
		if err := os.Chtimes(path, atime, mtime); err != nil {
			return Attr{}, err
		}
	}
	return l.Stat(path)
}

func (l *Local) Truncate(path string, size uint64) error {
	return os.Truncate(path, int64(size))
}

func (l *Local) Commit(path string, offset int64, count int) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

func (l *Local) StatFS(path string) (Statfs, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return Statfs{}, err
	}
	bsize := uint64(st.Bsize)
	return Statfs{
		TotalBytes: st.Blocks * bsize,
		FreeBytes:  st.Bfree * bsize,
		AvailBytes: st.Bavail * bsize,
		TotalFiles: st.Files,
		FreeFiles:  st.Ffree,
		AvailFiles: st.Ffree,
	}, nil
}

func attrFromFileInfo(fi fs.FileInfo) Attr {
	mode := fi.Mode()
	typ := TypeRegular
	switch {
	case mode.IsDir():
		typ = TypeDirectory
	case mode&fs.ModeSymlink != 0:
		typ = TypeSymlink
	case mode&fs.ModeDevice != 0:
		typ = TypeBlockDev
	case mode&fs.ModeCharDevice != 0:
		typ = TypeCharDev
	case mode&fs.ModeSocket != 0:
		typ = TypeSocket
	case mode&fs.ModeNamedPipe != 0:
		typ = TypeFIFO
	}

	attr := Attr{
		Type:  typ,
		Mode:  uint32(mode.Perm()),
		Size:  uint64(fi.Size()),
		Mtime: fi.ModTime(),
	}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		attr.Nlink = uint32(st.Nlink)
		attr.UID = st.Uid
		attr.GID = st.Gid
		attr.Fileid = st.Ino
		attr.Fsid = uint64(st.Dev)
		attr.Used = uint64(st.Blocks) * 512
		attr.Rdev = uint64(st.Rdev)
		attr.Atime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
		attr.Ctime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}
	return attr
}

func inodeOf(fi fs.FileInfo) uint64 {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return st.Ino
	}
	return 0
}
