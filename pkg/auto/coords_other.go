//go:build !windows

package auto

import "github.com/go-vgo/robotgo"

// detectScale 非 Windows 平台由 robotgo 自行处理 Retina 缩放
func detectScale() CoordScale {
	return IdentityScale
}

// GetDPIScale 非 Windows 平台返回 1.0
func GetDPIScale() float64 {
	return 1.0
}

// GetPhysicalScreenSize 获取物理屏幕尺寸，与截图分辨率一致
func GetPhysicalScreenSize() (width, height int) {
	return robotgo.GetScreenSize()
}
