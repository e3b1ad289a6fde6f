package session

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/asivery/himd-js/himdfs"
)

const himdDir = "/HMDHIFI"

// corePrefixes are the three generation-numbered files every rotation
// touches (spec.md §4.7).
var corePrefixes = [3]string{"ATDATA", "MCLIST", "TRKIDX"}

func coreFileName(prefix string, dataNum uint32) string {
	return fmt.Sprintf("%s%02d.HMA", prefix, dataNum%16)
}

// AdvanceGeneration rotates ATDATA/MCLIST/TRKIDX to newGen, per spec.md
// §4.7. Any file already occupying the destination name (the "generation
// rotate collision" scenario of spec.md §8 scenario 6) is first renamed out
// of the way to a fresh .HJS basename, obtained by calling nextHJSBasename.
func AdvanceGeneration(fs himdfs.FileSystem, currentGen, newGen uint32, nextHJSBasename func() uint32) error {
	for _, prefix := range corePrefixes {
		newName := himdDir + "/" + coreFileName(prefix, newGen)
		curName := himdDir + "/" + coreFileName(prefix, currentGen)

		resolvedNew, err := himdfs.Resolve(fs, newName)
		if err != nil {
			return errors.Wrapf(err, "session: resolving %s", newName)
		}
		if exists(fs, resolvedNew) {
			hjsPath := fmt.Sprintf("%s/%08d.HJS", himdDir, nextHJSBasename())
			if err := fs.Rename(resolvedNew, hjsPath); err != nil {
				return errors.Wrapf(err, "session: evicting colliding %s", resolvedNew)
			}
		}

		resolvedCur, err := himdfs.Resolve(fs, curName)
		if err != nil {
			return errors.Wrapf(err, "session: resolving %s", curName)
		}
		if !exists(fs, resolvedCur) {
			return errors.Errorf("session: %s does not exist, cannot rotate", resolvedCur)
		}
		if err := fs.Rename(resolvedCur, newName); err != nil {
			return errors.Wrapf(err, "session: rotating %s to %s", resolvedCur, newName)
		}
	}
	return nil
}

func exists(fs himdfs.FileSystem, path string) bool {
	_, err := fs.GetSize(path)
	return err == nil
}
