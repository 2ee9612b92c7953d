//go:build windows

package filesystem

// syncDir: Windows 不支持目录 fsync。
func syncDir(string) error { return nil }
