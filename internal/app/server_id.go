package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// EnvInstanceID 覆盖实例ID的环境变量
const EnvInstanceID = "HEALTHPORTAL_INSTANCE_ID"

// GenerateInstanceID 生成协调器实例ID（日志关联用）
// 优先使用环境变量 HEALTHPORTAL_INSTANCE_ID，否则由主机名和短 UUID 组成
func GenerateInstanceID(app string) string {
	if id := os.Getenv(EnvInstanceID); id != "" {
		return id
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if app == "" {
		app = "healthportal"
	}
	return fmt.Sprintf("%s-%s-%s", app, hostname, uuid.New().String()[:8])
}
