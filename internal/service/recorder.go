package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// RecorderState 录音状态
type RecorderState int

const (
	RecorderIdle      RecorderState = iota // 空闲
	RecorderRecording                      // 录音中
	RecorderHasAudio                       // 已完成待发送
)

// AudioSource 麦克风能力接口，由平台层实现
//
// Start成功后返回的流就是占用中的设备，关闭流即释放设备。
type AudioSource interface {
	Start(ctx context.Context) (io.ReadCloser, error)
}

// RecorderConfig 录音配置
type RecorderConfig struct {
	MaxDuration time.Duration // 录音时长上限，0表示不限
}

// Recorder 语音录制状态机
//
// Idle -> Recording -> HasAudio -> Idle。任何离开Recording的路径
// （停止、取消、被新会话替换、超时）都必须释放麦克风设备。
// 时长展示由调用方按需轮询Duration。
type Recorder struct {
	source AudioSource
	config *RecorderConfig
	logger *Logger

	mu        sync.Mutex
	state     RecorderState
	session   uint64
	stream    io.ReadCloser
	buf       bytes.Buffer
	startedAt time.Time
	duration  time.Duration
	artifact  []byte
}

// NewRecorder 创建录音器实例
func NewRecorder(source AudioSource, config *RecorderConfig, logger *Logger) *Recorder {
	if config == nil {
		config = &RecorderConfig{}
	}
	return &Recorder{source: source, config: config, logger: logger}
}

// Start 开始录音
//
// 已有会话在录音时先终止旧会话（同一时间至多一个录音会话）。
// 权限被拒绝或设备错误时保持Idle并返回ErrPermissionDenied。
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state == RecorderRecording {
		r.cancelLocked()
	}

	stream, err := r.source.Start(ctx)
	if err != nil {
		r.mu.Unlock()
		return NewError(ErrPermissionDenied, "microphone access is required to record voice messages", err)
	}

	r.session++
	session := r.session
	r.stream = stream
	r.buf.Reset()
	r.artifact = nil
	r.duration = 0
	r.startedAt = time.Now()
	r.state = RecorderRecording
	r.mu.Unlock()

	go r.capture(session, stream)

	if r.config.MaxDuration > 0 {
		time.AfterFunc(r.config.MaxDuration, func() {
			r.autoStop(session)
		})
	}
	return nil
}

// capture 把音频流读入缓冲，会话被替换后读到的数据直接丢弃
func (r *Recorder) capture(session uint64, stream io.ReadCloser) {
	chunk := make([]byte, 4096)
	for {
		n, err := stream.Read(chunk)
		if n > 0 {
			r.mu.Lock()
			if r.session == session && r.state == RecorderRecording {
				r.buf.Write(chunk[:n])
			}
			r.mu.Unlock()
		}
		if err != nil {
			if err != io.EOF {
				r.logger.Debug("audio capture ended: %v", err)
			}
			return
		}
	}
}

// Stop 结束录音并生成音频制品；非录音状态下为no-op
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecorderRecording {
		return
	}
	r.stopLocked()
}

func (r *Recorder) stopLocked() {
	// 关闭流即释放麦克风
	if r.stream != nil {
		r.stream.Close()
		r.stream = nil
	}
	r.duration = time.Since(r.startedAt)
	r.artifact = append([]byte(nil), r.buf.Bytes()...)
	r.state = RecorderHasAudio
}

// Cancel 取消录音，释放设备并丢弃所有已捕获数据
//
// 对已生成制品的HasAudio状态同样生效：被取消的会话不保留任何结果。
func (r *Recorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked()
}

func (r *Recorder) cancelLocked() {
	if r.stream != nil {
		r.stream.Close()
		r.stream = nil
	}
	r.buf.Reset()
	r.artifact = nil
	r.duration = 0
	r.state = RecorderIdle
}

// autoStop 到达时长上限时自动结束，仅对仍在录音的原会话生效
func (r *Recorder) autoStop(session uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != session || r.state != RecorderRecording {
		return
	}
	r.logger.Info("recording reached max duration %v, stopping", r.config.MaxDuration)
	r.stopLocked()
}

// Send 取走音频制品交给调用方，并复位到Idle
func (r *Recorder) Send() ([]byte, time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecorderHasAudio {
		return nil, 0, NewError(ErrInvalidInput, "no finished recording to send", nil)
	}

	artifact := r.artifact
	duration := r.duration
	r.artifact = nil
	r.buf.Reset()
	r.duration = 0
	r.state = RecorderIdle
	return artifact, duration, nil
}

// State 当前状态
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Duration 当前时长：录音中为实时值，结束后为定格值
func (r *Recorder) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == RecorderRecording {
		return time.Since(r.startedAt)
	}
	return r.duration
}

// WatchDuration 周期推送当前录音时长，驱动界面计时显示
//
// 每100ms一个刻度；录音结束或上下文取消后关闭通道。
func (r *Recorder) WatchDuration(ctx context.Context) <-chan time.Duration {
	ch := make(chan time.Duration)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if r.State() != RecorderRecording {
					return
				}
				select {
				case ch <- r.Duration():
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

// Artifact 已完成的音频制品，未完成时为nil
func (r *Recorder) Artifact() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.artifact
}

// FormatDuration 将时长格式化为mm:ss，秒数补零
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
