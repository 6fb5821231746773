// relayclient 是一个手工测试客户端：签发凭证、连上 /api/ws，
// 以文本或音频模式走完一轮对话，并把下行音频交给回放调度器。
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/oralmate/backend/internal/audio"
	"github.com/oralmate/backend/internal/auth"
	"github.com/oralmate/backend/internal/config"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	wsURL := flag.String("url", "ws://localhost:8080/api/ws", "服务端 WebSocket 地址")
	user := flag.String("user", "manual-tester", "凭证中的用户标识")
	session := flag.String("session", "", "自定义 sessionID，留空则自动生成")
	mode := flag.String("mode", "", "测试模式: text 或 audio")
	text := flag.String("text", "Hello, how are you today?", "text 模式发送的内容")
	audioPath := flag.String("audio", "", "audio 模式的输入文件 (裸 PCM s16le 单声道)")
	sourceRate := flag.Int("rate", 48000, "输入音频的采样率")
	outputPath := flag.String("out", "", "下行音频输出文件路径，留空则丢弃")
	wait := flag.Duration("wait", 5*time.Second, "最后一帧发出后等待回复的时长")

	flag.Parse()

	if *mode != "text" && *mode != "audio" {
		flag.Usage()
		log.Fatal("请通过 -mode=text 或 -mode=audio 指定测试模式")
	}

	sessionID := *session
	if sessionID == "" {
		sessionID = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}

	gate := auth.NewGate(cfg.Auth.JWTSecret)
	token, err := gate.Sign(auth.Identity{UserID: *user, Email: *user + "@local"}, time.Hour)
	if err != nil {
		log.Fatalf("凭证签发失败: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(
		fmt.Sprintf("%s?token=%s&sessionId=%s", *wsURL, token, sessionID), nil)
	if err != nil {
		log.Fatalf("连接失败: %v", err)
	}
	defer conn.Close()
	log.Printf("已连接 session=%s", sessionID)

	var sink io.Writer = io.Discard
	if *outputPath != "" {
		file, err := os.Create(*outputPath)
		if err != nil {
			log.Fatalf("创建输出文件失败: %v", err)
		}
		defer file.Close()
		sink = file
	}
	scheduler := audio.NewScheduler(sink, cfg.Audio.TargetSampleRate)
	defer scheduler.Close()

	done := make(chan struct{})
	go receive(conn, scheduler, done)

	switch *mode {
	case "text":
		sendText(conn, *text)
	case "audio":
		sendAudio(conn, cfg.Audio, *audioPath, *sourceRate)
	}

	select {
	case <-done:
	case <-time.After(*wait):
	}
}

// receive 打印控制帧并把音频帧排入回放队列，连接关闭后退出。
func receive(conn *websocket.Conn, scheduler *audio.Scheduler, done chan<- struct{}) {
	defer close(done)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("连接结束: %v", err)
			return
		}
		switch messageType {
		case websocket.TextMessage:
			log.Printf("<< %s", data)
		case websocket.BinaryMessage:
			log.Printf("<< %d 字节音频", len(data))
			if err := scheduler.Enqueue(data); err != nil {
				log.Printf("回放入队失败: %v", err)
			}
		}
	}
}

func sendText(conn *websocket.Conn, text string) {
	envelope, _ := json.Marshal(map[string]any{
		"type":    "text_message",
		"payload": map[string]string{"text": text},
	})
	if err := conn.WriteMessage(websocket.TextMessage, envelope); err != nil {
		log.Fatalf("发送失败: %v", err)
	}
	log.Printf(">> %s", envelope)
}

// sendAudio 把本地 PCM 文件走一遍采集链路：分块、重采样、量化、
// 组帧后逐帧上行，结束时通告 user_audio_ended。
func sendAudio(conn *websocket.Conn, audioCfg config.AudioConfig, path string, sourceRate int) {
	if path == "" {
		log.Fatal("audio 模式需要通过 -audio 指定输入文件")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("读取音频文件失败: %v", err)
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768
	}

	producer := audio.NewProducer(sourceRate, audioCfg.TargetSampleRate, audioCfg.FrameSize, audioCfg.TelemetryInterval)

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for frame := range producer.Frames() {
			buf := make([]byte, len(frame)*2)
			for i, sample := range frame {
				binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
				log.Printf("上行音频失败: %v", err)
				return
			}
		}
	}()
	go func() {
		for seconds := range producer.Durations() {
			log.Printf(">> 已采集 %.1fs", seconds)
		}
	}()

	// 模拟采集回调按 128 样本一块送入。
	const blockSize = 128
	for offset := 0; offset < len(samples); offset += blockSize {
		end := offset + blockSize
		if end > len(samples) {
			end = len(samples)
		}
		producer.ProcessBlock(samples[offset:end])
	}
	producer.Stop()
	<-sent

	if dropped := producer.Dropped(); dropped > 0 {
		log.Printf("[WARN] 传输不及时，丢弃 %d 帧", dropped)
	}

	envelope, _ := json.Marshal(map[string]string{"type": "user_audio_ended"})
	if err := conn.WriteMessage(websocket.TextMessage, envelope); err != nil {
		log.Fatalf("发送失败: %v", err)
	}
	log.Printf(">> %s", envelope)
}
