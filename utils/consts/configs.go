package consts

// 通过Plugin Config来控制各功能准入条件的 配置项

const PluginConfigGroupLevelKey = "grouplevel" // 配置功能所需群权限等级时，所用的配置项Key
const PluginConfigUserLevelKey = "userlevel"   // 配置功能所需用户权限等级时，所用的配置项Key

// 持久化K-V数据库中的键

const KVCooldownPrefix = "cooldown."
const KVQuotaPrefix = "quota."
const KVOverridesKey = "scheduler.overrides"
