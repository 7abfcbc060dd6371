package chat

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// FormatMessage 给广播内容加上发送方地址
//
//	FormatMessage("127.0.0.1:54321", "hello") == "\nClient <('127.0.0.1', 54321)> says:\nhello\n"
func FormatMessage(addr, content string) string {
	return fmt.Sprintf("\nClient <%s> says:\n%s\n", FormatAddr(addr), content)
}

// FormatAddr 把 host:port 渲染为 ('host', port)；IPv6 地址附带 flowinfo 与 scope 两个 0。
// 无法解析时原样返回。
func FormatAddr(addr string) string {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return addr
	}
	if strings.Contains(host, ":") {
		return fmt.Sprintf("('%s', %d, 0, 0)", host, port)
	}
	return fmt.Sprintf("('%s', %d)", host, port)
}
