//go:build !gocv

package gocv

import "errors"

const available = false

func findRegions([]byte, int) (frame, error) {
	return frame{}, errors.New("gocv build tag is not enabled")
}
