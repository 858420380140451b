// Package input 提供鼠标和键盘操作
package input

import (
	"sync"

	"github.com/go-vgo/robotgo"

	"github.com/zoeyai/zoeymatch/pkg/auto"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

// Driver 鼠标驱动，坐标均为输入坐标
type Driver interface {
	Move(x, y int)
	Click(button string, double bool)
	Location() (x, y int)
}

// robotDriver 通过 robotgo 操作真实鼠标
type robotDriver struct{}

func (robotDriver) Move(x, y int) { robotgo.Move(x, y) }

func (robotDriver) Click(button string, double bool) { robotgo.Click(button, double) }

func (robotDriver) Location() (int, int) { return robotgo.Location() }

var (
	driverMu sync.RWMutex
	driver   Driver = robotDriver{}
)

// SetDriver 替换鼠标驱动，返回原驱动；nil 恢复 robotgo
func SetDriver(d Driver) Driver {
	driverMu.Lock()
	defer driverMu.Unlock()
	old := driver
	if d == nil {
		d = robotDriver{}
	}
	driver = d
	return old
}

func currentDriver() Driver {
	driverMu.RLock()
	defer driverMu.RUnlock()
	return driver
}

// MoveTo 移动鼠标到截图坐标 p
func MoveTo(p cv.Point) {
	in := auto.CurrentScale().ToInput(p)
	currentDriver().Move(in.X, in.Y)
}

// MoveSmooth 平滑移动鼠标
func MoveSmooth(p cv.Point) {
	in := auto.CurrentScale().ToInput(p)
	robotgo.MoveSmooth(in.X, in.Y)
}

// Drag 拖拽到截图坐标 p
func Drag(p cv.Point) {
	in := auto.CurrentScale().ToInput(p)
	robotgo.DragSmooth(in.X, in.Y)
}

// Scroll 滚动
func Scroll(x, y int) {
	robotgo.Scroll(x, y)
}

// GetMousePosition 获取鼠标位置（截图坐标）
func GetMousePosition() cv.Point {
	x, y := currentDriver().Location()
	return auto.CurrentScale().ToScreen(cv.Point{X: x, Y: y})
}
