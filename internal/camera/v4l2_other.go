//go:build !linux

package camera

import "github.com/pkg/errors"

// OpenV4L2 is only available on Linux.
func OpenV4L2(Config) (Source, error) {
	return nil, errors.New("v4l2 backend requires linux")
}
