// Package lvm is a thin façade over the LVM tools, providing the logical
// volumes that back the drives presented by this device.
package lvm

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	er "pidrive/errors"
	"pidrive/pkg/utils"
)

// run is swapped out by tests.
var run = utils.RunCheckOutput

// LogicalVolume identifies one volume: a stable name, a byte size, and the
// path of its backing block device. Immutable once discovered.
type LogicalVolume struct {
	Name string
	Size uint64
	Path string
}

// ListVolumes reports every logical volume in the named volume group.
func ListVolumes(group string) ([]LogicalVolume, error) {
	out, err := run("lvs", "--noheadings", "--units", "b", "--nosuffix",
		"--separator", ":", "-o", "lv_name,lv_size,lv_path", group)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list logical volumes")
	}

	var volumes []LogicalVolume
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) != 3 {
			return nil, errors.Wrapf(er.ErrOutputParse, "unexpected lvs line %q", line)
		}
		size, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad volume size in lvs line %q", line)
		}
		volumes = append(volumes, LogicalVolume{
			Name: strings.TrimSpace(fields[0]),
			Size: size,
			Path: strings.TrimSpace(fields[2]),
		})
	}
	return volumes, nil
}
