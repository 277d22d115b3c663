package dataset

import (
	"io"

	"golang.org/x/exp/mmap"
)

// Load 以内存映射方式打开数据集工件并完整解码。
func Load(path string) (*Dataset, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer ra.Close()
	return Decode(io.NewSectionReader(ra, 0, int64(ra.Len())))
}

// Stat 仅读取文件头（不解压记录流）。
func Stat(path string) (Header, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer ra.Close()
	return ReadHeader(io.NewSectionReader(ra, 0, int64(ra.Len())))
}
