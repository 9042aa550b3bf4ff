package utils

import (
	"regexp"
)

// StringLimit 限制字符串长度，若超出limit，返回前limit个码点+"..."
func StringLimit(s string, limit int) string {
	runeSlice := []rune(s)
	if len(runeSlice) <= limit {
		return s
	}
	return string(runeSlice[:limit]) + "..."
}

// MergeStringSlices 合并多个字符串切片并去重、去除空字符串
func MergeStringSlices(slices ...[]string) (res []string) {
	mp := FormSetByStrings(slices...)
	for s := range mp {
		if len(s) == 0 {
			continue
		}
		res = append(res, s)
	}
	return
}

// FormSetByStrings 将字符串切片形成Set
func FormSetByStrings(slices ...[]string) map[string]struct{} {
	mp := make(map[string]struct{})
	for _, slice := range slices {
		for _, s := range slice {
			mp[s] = struct{}{}
		}
	}
	return mp
}

// StringSliceContain 字符串切片中是否含有指定字符串
func StringSliceContain(slices []string, substr string) bool {
	for _, str := range slices {
		if str == substr {
			return true
		}
	}
	return false
}

var numberReg = regexp.MustCompile(`^\d+$`)

// IsNumber 字符串是否为纯数字
func IsNumber(s string) bool {
	return numberReg.MatchString(s)
}
