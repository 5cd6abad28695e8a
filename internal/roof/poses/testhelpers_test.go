package poses

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

const camerasTXT = `# Camera list with one line of data per camera:
#   CAMERA_ID, MODEL, WIDTH, HEIGHT, PARAMS[]
# Number of cameras: 2
1 OPENCV_FISHEYE 1920 1080 900 900 960 540 0 0 0 0
2 PINHOLE 1600 1200 1000 1010 800 600
`

const imagesTXT = `# Image list with two lines of data per image:
#   IMAGE_ID, QW, QX, QY, QZ, TX, TY, TZ, CAMERA_ID, NAME
#   POINTS2D[] as (X, Y, POINT3D_ID)
# Number of images: 3, mean observations per image: 2
1 1 0 0 0 0 0 5 2 roof_001.jpg
10.5 20.5 1 30.5 40.5 -1
2 0.7071067811865476 0 0.7071067811865476 0 1 0 4 2 roof_002.jpg

3 2 0 0 0 0 1 3 2 roof_003.jpg
1 2 3
`

const points3DTXT = `# 3D point list with one line of data per point:
1 0 0 0 255 0 0 0.5 1 0
2 3 1 0 0 255 0 0.4 1 1
3 1 6 2 0 0 255 0.3 2 0
`

// writeModel writes a COLMAP text model into dir.
func writeModel(t *testing.T, dir string, withPoints bool) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{"cameras.txt": camerasTXT, "images.txt": imagesTXT}
	if withPoints {
		files["points3D.txt"] = points3DTXT
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// writePNGs writes n small PNG images named img_00.png, img_01.png, ...
func writePNGs(t *testing.T, dir string, n int) []string {
	t.Helper()
	var names []string
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 4, 3))
		img.Set(1, 1, color.RGBA{R: 200, A: 255})
		name := filepath.Join(dir, "img_"+string(rune('0'+i/10))+string(rune('0'+i%10))+".png")
		f, err := os.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		f.Close()
		names = append(names, filepath.Base(name))
	}
	return names
}
