package admin

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/RicheyJang/PaimengGate/perm"
	"github.com/RicheyJang/PaimengGate/utils"

	"github.com/tidwall/gjson"
)

var (
	errNotEnoughArgs = errors.New("参数不足")
	errBadID         = errors.New("ID格式错误")
	errBadDuration   = errors.New("时长格式错误")
)

// 解析 [功能名] [群号]：群聊中群号可省略
func parseSwitchArgs(args string, currentGroup int64) (name string, groupID int64, err error) {
	subs := strings.Fields(args)
	if len(subs) == 0 {
		return "", 0, errNotEnoughArgs
	}
	name, groupID = subs[0], currentGroup
	if len(subs) > 1 {
		if groupID, err = strconv.ParseInt(subs[1], 10, 64); err != nil {
			return "", 0, errBadID
		}
	}
	if groupID == 0 {
		return "", 0, fmt.Errorf("%w：私聊中需要指定群号", errNotEnoughArgs)
	}
	return
}

// 解析 [群号]：群聊中可省略
func parseGroupArg(args string, currentGroup int64) (int64, error) {
	args = strings.TrimSpace(args)
	if len(args) == 0 {
		if currentGroup == 0 {
			return 0, fmt.Errorf("%w：私聊中需要指定群号", errNotEnoughArgs)
		}
		return currentGroup, nil
	}
	if !utils.IsNumber(args) {
		return 0, errBadID
	}
	return strconv.ParseInt(args, 10, 64)
}

// 解析 [ID] [等级] [时长]：时长省略或为0时永久生效
func parsePermissionArgs(args string) (id int64, level perm.Level, duration time.Duration, err error) {
	subs := strings.Fields(args)
	if len(subs) < 2 {
		return 0, 0, 0, errNotEnoughArgs
	}
	if id, err = strconv.ParseInt(subs[0], 10, 64); err != nil {
		return 0, 0, 0, errBadID
	}
	if level, err = perm.Parse(subs[1]); err != nil {
		return 0, 0, 0, err
	}
	if len(subs) > 2 && subs[2] != "0" {
		if duration, err = parseDurationWithDay(subs[2]); err != nil || duration < 0 {
			return 0, 0, 0, errBadDuration
		}
	}
	return id, level, duration, nil
}

var dayReg = regexp.MustCompile(`^[1-9]\d*d`)

// 支持以d表示天的时长，如 1d12h
func parseDurationWithDay(duration string) (res time.Duration, err error) {
	if len(duration) == 0 {
		return 0, fmt.Errorf("duration too short")
	}
	if dayReg.MatchString(duration) {
		dIndex := strings.IndexRune(duration, 'd')
		day, _ := strconv.Atoi(duration[:dIndex])
		res = 24 * time.Hour * time.Duration(day)
		duration = duration[dIndex+1:]
		if len(duration) == 0 {
			return
		}
	}
	other, err := time.ParseDuration(duration)
	if err != nil {
		return 0, err
	}
	return other + res, err
}

// 群成员信息中的角色是否为群主或管理员
func isGroupAdmin(member gjson.Result) bool {
	role := member.Get("role").String()
	return role == "owner" || role == "admin"
}

// 从群列表中取出群号与群名
func parseGroupList(list gjson.Result) (ids []int64, names map[int64]string) {
	names = make(map[int64]string)
	for _, g := range list.Array() {
		id := g.Get("group_id").Int()
		if id == 0 {
			continue
		}
		ids = append(ids, id)
		names[id] = g.Get("group_name").String()
	}
	return
}
