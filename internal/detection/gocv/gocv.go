//go:build gocv

package gocv

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

const available = true

const (
	minAspectRatio = 0.1
	maxAspectRatio = 10.0
)

// findRegions runs blur, Canny and external contour extraction on the image
// scaled so that its longer side is at most maxSide.
func findRegions(data []byte, maxSide int) (frame, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		if err == nil {
			mat.Close()
		}
		return frame{}, errors.New("failed to decode image")
	}
	defer func() { mat.Close() }()
	srcWidth, srcHeight := mat.Cols(), mat.Rows()

	if mat.Cols() > maxSide || mat.Rows() > maxSide {
		scale := float64(maxSide) / float64(max(mat.Cols(), mat.Rows()))
		resized := gocv.NewMat()
		gocv.Resize(mat, &resized, image.Pt(int(float64(mat.Cols())*scale), int(float64(mat.Rows())*scale)), 0, 0, gocv.InterpolationArea)
		mat.Close()
		mat = resized
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(gray, &blur, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blur, &edges, 50, 150)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	regions := make([]region, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		if rect.Dy() == 0 {
			continue
		}
		aspect := float64(rect.Dx()) / float64(rect.Dy())
		if aspect < minAspectRatio || aspect > maxAspectRatio {
			continue
		}
		regions = append(regions, region{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()})
	}
	return frame{
		regions:   regions,
		width:     mat.Cols(),
		height:    mat.Rows(),
		srcWidth:  srcWidth,
		srcHeight: srcHeight,
	}, nil
}
