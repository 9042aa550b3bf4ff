package dao

import (
	"github.com/RicheyJang/PaimengGate/capability"
	"github.com/RicheyJang/PaimengGate/directory"
	"github.com/RicheyJang/PaimengGate/perm"
	"github.com/RicheyJang/PaimengGate/utils"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 200

// LoadGroups 读取全部群记录，越界的权限等级会被修正
func LoadGroups(db *gorm.DB) ([]directory.GroupRecord, error) {
	var rows []GroupSetting
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]directory.GroupRecord, 0, len(rows))
	for _, row := range rows {
		if !perm.Level(row.Permission).Valid() {
			log.Warnf("群%v的权限等级(%v)无效，已修正", row.ID, row.Permission)
		}
		res = append(res, directory.GroupRecord{
			ID:         row.ID,
			Permission: perm.Clamp(row.Permission),
			BotEnabled: row.BotEnabled,
		})
	}
	return res, nil
}

// SaveGroups 写入(更新)群记录
func SaveGroups(db *gorm.DB, records []directory.GroupRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]GroupSetting, 0, len(records))
	for _, r := range records {
		rows = append(rows, GroupSetting{ID: r.ID, Permission: int(r.Permission), BotEnabled: r.BotEnabled})
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"permission", "bot_enabled"}),
	}).CreateInBatches(&rows, batchSize).Error
}

// LoadUsers 读取全部用户记录
func LoadUsers(db *gorm.DB) ([]directory.UserRecord, error) {
	var rows []UserSetting
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]directory.UserRecord, 0, len(rows))
	for _, row := range rows {
		if !perm.Level(row.Permission).Valid() {
			log.Warnf("用户%v的权限等级(%v)无效，已修正", row.ID, row.Permission)
		}
		res = append(res, directory.UserRecord{ID: row.ID, Permission: perm.Clamp(row.Permission)})
	}
	return res, nil
}

// SaveUsers 写入(更新)用户记录
func SaveUsers(db *gorm.DB, records []directory.UserRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]UserSetting, 0, len(records))
	for _, r := range records {
		rows = append(rows, UserSetting{ID: r.ID, Permission: int(r.Permission)})
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"permission"}),
	}).CreateInBatches(&rows, batchSize).Error
}

// LoadCapabilityStates 读取指定种类(plugin/task)的开关状态
func LoadCapabilityStates(db *gorm.DB, kind string) ([]capability.State, error) {
	var rows []CapabilityState
	if err := db.Where("kind = ?", kind).Find(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]capability.State, 0, len(rows))
	for _, row := range rows {
		res = append(res, capability.State{
			ID:             row.ID,
			GlobalEnabled:  row.GlobalEnabled,
			EnabledGroups:  utils.SplitInt64List(row.EnabledGroups),
			DisabledGroups: utils.SplitInt64List(row.DisabledGroups),
		})
	}
	return res, nil
}

// SaveCapabilityStates 写入(更新)开关状态
func SaveCapabilityStates(db *gorm.DB, kind string, states []capability.State) error {
	if len(states) == 0 {
		return nil
	}
	rows := make([]CapabilityState, 0, len(states))
	for _, s := range states {
		rows = append(rows, CapabilityState{
			Kind:           kind,
			ID:             s.ID,
			GlobalEnabled:  s.GlobalEnabled,
			EnabledGroups:  utils.JoinInt64List(s.EnabledGroups),
			DisabledGroups: utils.JoinInt64List(s.DisabledGroups),
		})
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"global_enabled", "enabled_groups", "disabled_groups"}),
	}).CreateInBatches(&rows, batchSize).Error
}
