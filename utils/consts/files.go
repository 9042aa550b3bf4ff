package consts

const DefaultLogDir = "./log"
const DefaultConfigDir = "."
const DefaultDataDir = "./data"
const DefaultLevelDBDir = DefaultDataDir + "/leveldb"
const DefaultSQLitePath = DefaultDataDir + "/gate.db"

const MainConfigFileName = "config-main.yaml"
const PluginConfigFileName = "config-plugin.yaml"
