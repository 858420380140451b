package cv

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// maxExactPixels 模板像素数不超过该值时，分子分母全部用 int64 精确计算
const maxExactPixels = 1 << 23

// luma BT.601 整数亮度，结果位于 [0, 255]
func luma(r, g, b uint8) int64 {
	return (299*int64(r) + 587*int64(g) + 114*int64(b) + 500) / 1000
}

// grayPlane 灰度平面及其积分图
// lum 以 float64 存储整数亮度，便于向量化点积且结果仍然精确（< 2^53）
type grayPlane struct {
	w, h  int
	lum   []float64
	sum   []int64 // (w+1)*(h+1) 积分图
	sumSq []int64 // 平方积分图
}

func newGrayPlane(b *PixelBuffer) *grayPlane {
	w, h := b.width, b.height
	p := &grayPlane{
		w:     w,
		h:     h,
		lum:   make([]float64, w*h),
		sum:   make([]int64, (w+1)*(h+1)),
		sumSq: make([]int64, (w+1)*(h+1)),
	}
	rd := b.reader()
	iw := w + 1
	for y := 0; y < h; y++ {
		src := rd.row(y, w)
		var rowSum, rowSq int64
		for x := 0; x < w; x++ {
			s := x * rd.bpp
			v := luma(src[s], src[s+1], src[s+2])
			p.lum[y*w+x] = float64(v)
			rowSum += v
			rowSq += v * v
			p.sum[(y+1)*iw+x+1] = p.sum[y*iw+x+1] + rowSum
			p.sumSq[(y+1)*iw+x+1] = p.sumSq[y*iw+x+1] + rowSq
		}
	}
	return p
}

// windowSums 返回以 (x, y) 为左上角、w*h 窗口的亮度和与平方和
func (p *grayPlane) windowSums(x, y, w, h int) (int64, int64) {
	iw := p.w + 1
	a := y*iw + x
	b := y*iw + x + w
	c := (y+h)*iw + x
	d := (y+h)*iw + x + w
	return p.sum[d] - p.sum[b] - p.sum[c] + p.sum[a],
		p.sumSq[d] - p.sumSq[b] - p.sumSq[c] + p.sumSq[a]
}

// cross 计算窗口与模板的逐像素乘积和，每个像素只访问一次
func (p *grayPlane) cross(t *grayPlane, x, y int) float64 {
	var acc float64
	for ty := 0; ty < t.h; ty++ {
		off := (y+ty)*p.w + x
		acc += floats.Dot(p.lum[off:off+t.w], t.lum[ty*t.w:(ty+1)*t.w])
	}
	return acc
}

// nccTerms 一次 NCC 计算所需的全部整数统计量
type nccTerms struct {
	n           int64
	sumS, sumS2 int64
	sumT, sumT2 int64
	cross       float64
}

// nccScore 计算归一化互相关并映射到 [0, 1]
//
// 平坦窗口（方差为 0）按整数和精确判定：
// 两者都平坦时亮度相同记为 1，否则记为 0；只有一方平坦时记为 0。
func nccScore(t nccTerms) float64 {
	if t.n <= maxExactPixels {
		varS := t.n*t.sumS2 - t.sumS*t.sumS
		varT := t.n*t.sumT2 - t.sumT*t.sumT
		if varS == 0 || varT == 0 {
			return flatScore(varS == 0 && varT == 0 && t.sumS == t.sumT)
		}
		num := t.n*int64(t.cross) - t.sumS*t.sumT
		return remap(float64(num) / math.Sqrt(float64(varS)*float64(varT)))
	}

	n := float64(t.n)
	sS, sT := float64(t.sumS), float64(t.sumT)
	varS := n*float64(t.sumS2) - sS*sS
	varT := n*float64(t.sumT2) - sT*sT
	if varS <= 0 || varT <= 0 {
		return flatScore(varS <= 0 && varT <= 0 && t.sumS == t.sumT)
	}
	return remap((n*t.cross - sS*sT) / math.Sqrt(varS*varT))
}

func flatScore(identical bool) float64 {
	if identical {
		return 1
	}
	return remap(0)
}

// remap 将 [-1, 1] 的相关系数映射到 [0, 1]
func remap(ncc float64) float64 {
	if ncc > 1 {
		ncc = 1
	} else if ncc < -1 {
		ncc = -1
	}
	return (ncc + 1) / 2
}

// scoreAt 计算 (x, y) 处的灰度 NCC 得分
func scoreAt(screen *grayPlane, tmpl *grayPlane, ts TemplateStats, x, y int) float64 {
	sS, sS2 := screen.windowSums(x, y, tmpl.w, tmpl.h)
	return nccScore(nccTerms{
		n:     int64(ts.Count),
		sumS:  sS,
		sumS2: sS2,
		sumT:  ts.sum,
		sumT2: ts.sumSq,
		cross: screen.cross(tmpl, x, y),
	})
}
