package lifecycle

import "fmt"

func errUnparseableDate(name string) error {
	return fmt.Errorf("lifecycle: partition %q has no parseable date", name)
}

func errEmptyCompressedFile(path string) error {
	return fmt.Errorf("lifecycle: compressed file %q is empty, refusing to replace original", path)
}
