package layer

// SampleScene returns a small ad layout over baseURL that exercises every
// layer kind: a gradient background, the base image inset with a halo, a
// framing star and a neon headline.
func SampleScene(f Factory, baseURL string) List {
	bg := f.NewBackground(BgGradient, GradientValue("#1a1a2e", "#e94560"))

	img := f.NewBaseImage(baseURL)
	img.X, img.Y = f.CanvasW*0.1, f.CanvasH*0.1
	img.Width, img.Height = f.CanvasW*0.8, f.CanvasH*0.8
	img.BorderRadius = 24
	img.Halo = &Glow{Color: "#ffffff", Blur: 18}
	img.Border = &Stroke{Color: "#ffffff", Width: 4}

	star := f.NewShape(ShapeStar)
	star.X, star.Y = f.CanvasW*0.75, f.CanvasH*0.05
	star.Fill = "#FFD166"
	star.Rotation = 15
	star.Glow = &Glow{Color: "#FFD166", Blur: 12}
	star.IsBackgroundShape = true

	headline := f.NewText("SALE")
	headline.FontSize = 72
	headline.Y = f.CanvasH * 0.85
	headline.LetterSpacing = 4
	headline.Neon = &Glow{Color: "#00F5FF", Blur: 10}
	headline.Stroke = &Stroke{Color: "#0B132B", Width: 2}

	return List{bg, img, star, headline}
}
