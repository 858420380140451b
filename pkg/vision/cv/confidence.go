package cv

// rgbConfidence 计算 RGB 三通道置信度
// 对窗口与模板逐通道计算 NCC，返回最小通道的得分
func rgbConfidence(screen, tmpl *PixelBuffer, x, y int) float64 {
	minConfidence := 1.0
	for ch := 0; ch < 3; ch++ {
		confidence := channelConfidence(screen, tmpl, x, y, ch)
		if confidence < minConfidence {
			minConfidence = confidence
		}
	}
	return minConfidence
}

// channelConfidence 计算单通道置信度
func channelConfidence(screen, tmpl *PixelBuffer, x, y, ch int) float64 {
	sr := screen.reader()
	tr := tmpl.reader()
	tw, th := tmpl.width, tmpl.height

	var t nccTerms
	t.n = int64(tw * th)
	var cross int64
	for ty := 0; ty < th; ty++ {
		srow := sr.row(y+ty, x+tw)
		trow := tr.row(ty, tw)
		for tx := 0; tx < tw; tx++ {
			s := int64(srow[(x+tx)*sr.bpp+ch])
			v := int64(trow[tx*tr.bpp+ch])
			t.sumS += s
			t.sumS2 += s * s
			t.sumT += v
			t.sumT2 += v * v
			cross += s * v
		}
	}
	t.cross = float64(cross)
	return nccScore(t)
}
