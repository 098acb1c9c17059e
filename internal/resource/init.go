package resource

import "streaming-engine/pkg/manager"

func init() {
	// 注册资源插件
	manager.RegisterResourcePlugin(&MinioResourcePlugin{})
	manager.RegisterResourcePlugin(&RedisResourcePlugin{})
	manager.RegisterResourcePlugin(&KafkaResourcePlugin{})
}
