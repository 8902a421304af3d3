//go:build unix

package safetensors

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// mapFile prefers a read-only shared mapping and falls back to reading the file.
func mapFile(f *os.File, size int) ([]byte, bool, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return data, true, nil
	}
	data, err = readAll(f, size)
	return data, false, err
}

func unmap(data []byte) error {
	return unix.Munmap(data)
}

func readAll(f io.ReaderAt, size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := f.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return data, nil
}
