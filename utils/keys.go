package utils

import (
	"sort"
	"strconv"
	"strings"
)

// 数据库中以"|key1|key2|"形式保存的列表

// HasListKey 列表字符串中是否含有key
func HasListKey(org, key string) bool {
	return strings.Contains(org, "|"+key+"|")
}

// AddListKey 向列表字符串中添加key
func AddListKey(org, key string) string {
	if len(org) == 0 || !strings.HasSuffix(org, "|") {
		org += "|"
	}
	if !HasListKey(org, key) {
		return org + key + "|"
	}
	return org
}

// DelListKey 从列表字符串中删除key
func DelListKey(org, key string) string {
	res := strings.ReplaceAll(org, "|"+key+"|", "|")
	if res == "|" {
		return ""
	}
	return res
}

// SplitListKeys 拆分列表字符串，去重去空
func SplitListKeys(org string) []string {
	keys := MergeStringSlices(strings.Split(org, "|"))
	sort.Strings(keys)
	return keys
}

// JoinInt64List 将ID列表编码为列表字符串
func JoinInt64List(ids []int64) string {
	res := ""
	for _, id := range ids {
		res = AddListKey(res, strconv.FormatInt(id, 10))
	}
	return res
}

// SplitInt64List 解析列表字符串中的ID，无法解析的项被忽略
func SplitInt64List(org string) []int64 {
	var ids []int64
	for _, key := range SplitListKeys(org) {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
