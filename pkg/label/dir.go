package label

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// IsLabelFile reports whether name is a label file: a .txt file other than
// ClassesFile.
func IsLabelFile(name string) bool {
	return strings.HasSuffix(name, Ext) && name != ClassesFile
}

// ListDir returns the label file names in dir, sorted.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsLabelFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// CommonNames returns the label file names present in both directories,
// sorted.
func CommonNames(dirA, dirB string) ([]string, error) {
	a, err := ListDir(dirA)
	if err != nil {
		return nil, err
	}
	b, err := ListDir(dirB)
	if err != nil {
		return nil, err
	}
	var common []string
	for _, n := range a {
		if _, ok := slices.BinarySearch(b, n); ok {
			common = append(common, n)
		}
	}
	return common, nil
}

// ReadDir reads every label file in dir. Unreadable files are collected in
// failed instead of aborting the read.
func ReadDir(dir string) (files []File, failed []error, err error) {
	names, err := ListDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, n := range names {
		f, ferr := ReadFile(filepath.Join(dir, n))
		if ferr != nil {
			failed = append(failed, ferr)
			continue
		}
		files = append(files, f)
	}
	return files, failed, nil
}

// MergeDirs reads dirA and dirB and merges them with MergeWithTag.
func MergeDirs(dirA, dirB string, tagA, tagB Tag) (files []File, failed []error, err error) {
	a, failedA, err := ReadDir(dirA)
	if err != nil {
		return nil, nil, err
	}
	b, failedB, err := ReadDir(dirB)
	if err != nil {
		return nil, nil, err
	}
	return MergeWithTag(a, b, tagA, tagB), append(failedA, failedB...), nil
}
