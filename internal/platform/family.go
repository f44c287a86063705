package platform

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// OSRelease holds the /etc/os-release fields used for family detection.
type OSRelease struct {
	ID        string
	IDLike    []string
	VersionID string
}

// familyByDistro groups distributions by the package ecosystem that ships
// their z3 development files.
var familyByDistro = map[string]string{
	"debian": "debian", "ubuntu": "debian", "linuxmint": "debian", "pop": "debian",
	"fedora": "rhel", "rhel": "rhel", "centos": "rhel", "rocky": "rhel",
	"almalinux": "rhel", "ol": "rhel", "amzn": "rhel",
	"arch": "arch", "manjaro": "arch",
	"alpine":   "alpine",
	"opensuse": "suse", "opensuse-leap": "suse", "opensuse-tumbleweed": "suse", "sles": "suse",
}

// ParseOSRelease reads an os-release formatted file.
func ParseOSRelease(path string) (*OSRelease, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	rel := &OSRelease{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		switch key {
		case "ID":
			rel.ID = value
		case "ID_LIKE":
			rel.IDLike = strings.Fields(value)
		case "VERSION_ID":
			rel.VersionID = value
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rel, nil
}

// MapDistroToFamily resolves id, then each ID_LIKE entry in order.
func MapDistroToFamily(id string, idLike []string) (string, error) {
	for _, candidate := range append([]string{id}, idLike...) {
		if family, ok := familyByDistro[candidate]; ok {
			return family, nil
		}
	}
	return "", fmt.Errorf("unknown distro: %s", id)
}

// DetectFamily returns "" without error when /etc/os-release is absent.
func DetectFamily() (string, error) {
	return detectFamilyFrom("/etc/os-release")
}

func detectFamilyFrom(path string) (string, error) {
	rel, err := ParseOSRelease(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return MapDistroToFamily(rel.ID, rel.IDLike)
}
