package input

import (
	"fmt"
	"strings"

	"github.com/go-vgo/robotgo"
)

// TypeText 在当前焦点处输入文字
func TypeText(text string) {
	robotgo.TypeStr(text)
}

// KeyTap 按键
func KeyTap(key string, modifiers ...string) {
	if len(modifiers) > 0 {
		robotgo.KeyTap(key, modifiers)
	} else {
		robotgo.KeyTap(key)
	}
}

// HotKey 组合键，最后一个为主键
func HotKey(keys ...string) {
	switch len(keys) {
	case 0:
		return
	case 1:
		robotgo.KeyTap(keys[0])
	default:
		robotgo.KeyTap(keys[len(keys)-1], keys[:len(keys)-1])
	}
}

// modifierAliases 修饰键别名，值为 robotgo 键名
var modifierAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"alt":     "alt",
	"option":  "alt",
	"cmd":     "cmd",
	"command": "cmd",
	"win":     "cmd",
	"super":   "cmd",
}

// ParseHotKey 解析 "ctrl+shift+s" 形式的组合键
// 除最后一个键外都必须是修饰键
func ParseHotKey(s string) ([]string, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	keys := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("组合键格式错误: %q", s)
		}
		if i < len(parts)-1 {
			mod, ok := modifierAliases[p]
			if !ok {
				return nil, fmt.Errorf("未知的修饰键 %q: %q", p, s)
			}
			p = mod
		}
		keys = append(keys, p)
	}
	return keys, nil
}
