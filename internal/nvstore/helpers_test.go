package nvstore

import "os"

func mkdir(path string) error { return os.Mkdir(path, 0o755) }
