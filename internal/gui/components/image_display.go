package components

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

const (
	ScrollViewportWidth  = 900
	ScrollViewportHeight = 480
	ImageDisplaySize     = 512
)

// ImageDisplay shows the grayscale micrograph next to its mask overlay.
type ImageDisplay struct {
	container       *fyne.Container
	grayImage       *canvas.Image
	overlayImage    *canvas.Image
	titleLabel      *widget.Label
	scrollContainer *container.Scroll
}

func NewImageDisplay() *ImageDisplay {
	grayImage := canvas.NewImageFromImage(nil)
	grayImage.FillMode = canvas.ImageFillContain
	grayImage.SetMinSize(fyne.NewSize(ImageDisplaySize, ImageDisplaySize))

	overlayImage := canvas.NewImageFromImage(nil)
	overlayImage.FillMode = canvas.ImageFillContain
	overlayImage.SetMinSize(fyne.NewSize(ImageDisplaySize, ImageDisplaySize))

	grayContainer := container.NewVBox(
		widget.NewRichTextFromMarkdown("**Micrograph**"),
		grayImage,
	)

	overlayContainer := container.NewVBox(
		widget.NewRichTextFromMarkdown("**Masks**"),
		overlayImage,
	)

	imageLayout := container.New(
		layout.NewHBoxLayout(),
		grayContainer,
		overlayContainer,
	)

	scrollContainer := container.NewScroll(imageLayout)
	scrollContainer.SetMinSize(fyne.NewSize(ScrollViewportWidth, ScrollViewportHeight))

	titleLabel := widget.NewLabel("")

	mainContainer := container.NewBorder(
		titleLabel, nil, nil, nil,
		scrollContainer,
	)

	return &ImageDisplay{
		container:       mainContainer,
		grayImage:       grayImage,
		overlayImage:    overlayImage,
		titleLabel:      titleLabel,
		scrollContainer: scrollContainer,
	}
}

func (id *ImageDisplay) GetContainer() *fyne.Container {
	return id.container
}

// SetFrame replaces both panes at once so they never show different parameters.
func (id *ImageDisplay) SetFrame(gray, overlay image.Image) {
	if gray == nil || overlay == nil {
		return
	}

	id.grayImage.Image = gray
	id.grayImage.Refresh()

	id.overlayImage.Image = overlay
	id.overlayImage.Refresh()
}

func (id *ImageDisplay) SetTitle(title string) {
	id.titleLabel.SetText(title)
}
