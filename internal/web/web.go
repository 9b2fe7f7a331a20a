// 本文件用于内嵌并提供浏览器端监控面板
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var assets embed.FS

// Handler 返回静态资源处理器，根路径对应 index.html
func Handler() http.Handler {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		// static 目录随二进制内嵌，不存在即为构建错误
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
