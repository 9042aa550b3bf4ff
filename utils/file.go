package utils

import (
	"os"
	"path/filepath"
)

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || os.IsExist(err)
}

// PathJoin 拼接路径
func PathJoin(elem ...string) string {
	return filepath.Join(elem...)
}

// MakeDirWithMode 创建文件夹(含父文件夹)，返回其绝对路径
func MakeDirWithMode(dir string, mode os.FileMode) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(abs, mode); err != nil {
		return "", err
	}
	return abs, nil
}
