package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"swapengine/internal/types"

	"github.com/zeromicro/go-zero/rest/httpc"
)

func main() {
	// 1. 定义命令行参数
	server := flag.String("server", "http://localhost:8888", "swapengine 服务地址")
	action := flag.String("action", "quote", "操作: quote, quotes, approval, execute, status, strategies, history")
	user := flag.String("user", "", "签名钱包地址")
	tokenIn := flag.String("in", "", "卖出代币地址 (原生币使用 0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE)")
	tokenOut := flag.String("out", "", "买入代币地址")
	amount := flag.String("amount", "", "卖出数量，最小单位整数")
	strategyID := flag.String("strategy", "", "策略 ID (direct, batch_auction)，为空使用服务端默认")
	fallbacks := flag.String("fallbacks", "", "回退策略，逗号分隔")
	slippage := flag.Int("slippage", 0, "滑点 (bps)")
	decimals := flag.Int("decimals", 0, "买入代币精度，仅用于格式化")
	id := flag.String("id", "", "交易哈希或订单 UID (status)")
	flag.Parse()

	swapReq := types.SwapReq{
		UserAddress:      *user,
		TokenIn:          *tokenIn,
		TokenOut:         *tokenOut,
		Amount:           *amount,
		Strategy:         *strategyID,
		SlippageBps:      *slippage,
		TokenOutDecimals: int32(*decimals),
	}
	if *fallbacks != "" {
		swapReq.Fallbacks = strings.Split(*fallbacks, ",")
	}

	// 2. 按操作准备请求
	var (
		method = http.MethodPost
		path   string
		body   any
	)
	switch *action {
	case "quote", "approval", "execute":
		path = "/api/swap/" + *action
		body = swapReq
	case "quotes":
		path = "/api/swap/quotes"
		body = types.QuotesReq{SwapReq: swapReq}
	case "status":
		path = "/api/swap/status"
		body = types.StatusReq{Id: *id, Strategy: *strategyID}
	case "strategies":
		method, path = http.MethodGet, "/api/swap/strategies"
	case "history":
		method, path = http.MethodGet, "/api/swap/history?user_address="+*user
	default:
		log.Fatalf("错误: 未知操作 %s", *action)
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			log.Fatalf("错误: 无法打包 JSON 数据: %v", err)
		}
		fmt.Printf("请求体: %s\n", string(jsonData))
		reader = bytes.NewReader(jsonData)
	}

	url := strings.TrimRight(*server, "/") + path
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		log.Fatalf("错误: 无法创建请求: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// 3. 发送请求
	fmt.Printf("正向 %s 发送请求...\n", url)
	resp, err := httpc.DoRequest(req)
	if err != nil {
		log.Fatalf("错误: 发送请求失败: %v", err)
	}
	defer resp.Body.Close()

	// 4. 读取并打印响应结果
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("错误: 读取响应体失败: %v", err)
	}

	fmt.Println("\n--- 响应结果 ---")
	fmt.Printf("HTTP 状态码: %d\n", resp.StatusCode)
	var pretty bytes.Buffer
	if json.Indent(&pretty, respBody, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Printf("响应体: %s\n", string(respBody))
	}
}
