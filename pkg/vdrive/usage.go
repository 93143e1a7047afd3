package vdrive

import (
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/disk"

	er "pidrive/errors"
)

// PartUsage is the space readout of one mounted partition, shown in the
// drive detail view.
type PartUsage struct {
	Path        string
	TotalBytes  uint64
	UsedBytes   uint64
	UsedPercent float64
}

// PartitionUsage reports usage for every mounted partition. Only valid
// while mounted internal.
func (d *VirtualDrive) PartitionUsage() ([]PartUsage, error) {
	s, ok := d.state.(Internal)
	if !ok {
		return nil, errors.Wrap(er.NotInternal, "usage requires an internal mount")
	}

	usages := make([]PartUsage, 0, len(s.Info.PartMountPaths))
	for _, path := range s.Info.PartMountPaths {
		stat, err := disk.Usage(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to stat %s", path)
		}
		usages = append(usages, PartUsage{
			Path:        path,
			TotalBytes:  stat.Total,
			UsedBytes:   stat.Used,
			UsedPercent: stat.UsedPercent,
		})
	}
	return usages, nil
}
