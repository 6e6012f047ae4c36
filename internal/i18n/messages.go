package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
)

// CLI messages. The English text doubles as the catalog key.
const (
	MsgTemplateWritten  = "No configuration file found, wrote a template to %s\n"
	MsgEditAndRerun     = "Edit it, then start again with: %s run -c %s\n"
	MsgLoadFailed       = "Failed to load configuration: %v\n"
	MsgForwarding       = "Forwarding local port %d to %s:%d\n"
	MsgLANHint          = "Players on this network will find \"%s\" under LAN worlds.\n"
	MsgDirectHint       = "Or connect directly to localhost:%d\n"
	MsgStartFailed      = "Failed to start: %v\n"
	MsgStopping         = "Shutting down...\n"
	MsgConfigValid      = "Configuration OK: %s\n"
	MsgConfigInvalid    = "Configuration has %d problem(s):\n"
	MsgConfigWritten    = "Wrote configuration template to %s\n"
	MsgNotRunning       = "No running instance found: %v\n"
	MsgStopSent         = "Sent stop signal to process %d\n"
	MsgStopped          = "Stopped.\n"
	MsgStopTimeout      = "Timed out waiting for process %d to exit\n"
	MsgUnknownCommand   = "Unknown command: %s\n"
	MsgCredentialsInUse = "Credentials are enabled; the token is kept for the remote proxy and never sent by the forwarder.\n"
)

var cat = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(DefaultLang))
	zh := map[string]string{
		MsgTemplateWritten:  "未找到配置文件，已生成模板：%s\n",
		MsgEditAndRerun:     "请编辑后重新启动：%s run -c %s\n",
		MsgLoadFailed:       "加载配置失败：%v\n",
		MsgForwarding:       "本地端口 %d 已转发到 %s:%d\n",
		MsgLANHint:          "同一局域网的玩家可以在局域网世界中看到 \"%s\"。\n",
		MsgDirectHint:       "也可以直接连接 localhost:%d\n",
		MsgStartFailed:      "启动失败：%v\n",
		MsgStopping:         "正在关闭...\n",
		MsgConfigValid:      "配置有效：%s\n",
		MsgConfigInvalid:    "配置存在 %d 个问题：\n",
		MsgConfigWritten:    "已写入配置模板：%s\n",
		MsgNotRunning:       "未找到正在运行的实例：%v\n",
		MsgStopSent:         "已向进程 %d 发送停止信号\n",
		MsgStopped:          "已停止。\n",
		MsgStopTimeout:      "等待进程 %d 退出超时\n",
		MsgUnknownCommand:   "未知命令：%s\n",
		MsgCredentialsInUse: "已启用凭据；令牌仅供远程代理使用，转发器不会发送它。\n",
	}
	for key, msg := range zh {
		_ = b.SetString(language.SimplifiedChinese, key, msg)
	}
	return b
}
