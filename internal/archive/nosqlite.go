//go:build !sqlite

package archive

import "fmt"

func newSQLiteArchive(_ string) (Archive, error) {
	return nil, fmt.Errorf("sqlite backend unavailable in this build; rebuild with -tags sqlite")
}
