package fuzzy

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultThreshold 低于等于该分数的候选一律视为未命中
const DefaultThreshold = 90

// Audit 追加写入每一次匹配尝试（target, candidate, coeff），供离线调整阈值
type Audit struct {
	mu   sync.Mutex
	path string
}

// NewAudit 打开审计文件；文件不存在或为空时先写表头
func NewAudit(path string) (*Audit, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建审计目录失败: %w", err)
	}
	a := &Audit{path: path}
	info, err := os.Stat(path)
	if err == nil && info.Size() > 0 {
		return a, nil
	}
	if err := a.append([]string{"target", "candidate", "coeff"}); err != nil {
		return nil, err
	}
	return a, nil
}

// Record 追加一条匹配尝试；未命中时记录得分最高的落选候选，没有候选时 candidate 为空
func (a *Audit) Record(target, candidate string, score float64) error {
	return a.append([]string{target, candidate, strconv.FormatFloat(score, 'f', -1, 64)})
}

func (a *Audit) append(row []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("打开审计文件失败: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// Matcher 在候选标题中挑出与目标最相似且高于阈值的一个
type Matcher struct {
	threshold float64
	audit     *Audit
	logger    *logrus.Logger
}

// NewMatcher audit 可为 nil（测试场景）
func NewMatcher(threshold float64, audit *Audit, logger *logrus.Logger) *Matcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Matcher{threshold: threshold, audit: audit, logger: logger}
}

// Threshold 当前阈值
func (m *Matcher) Threshold() float64 { return m.threshold }

// Score 返回最佳候选与得分，不做阈值判断也不写审计
func (m *Matcher) Score(target string, candidates []string) (string, float64) {
	var best string
	bestScore := -1.0
	for _, c := range candidates {
		s := TokenSetRatio(target, c)
		if s > bestScore {
			best, bestScore = c, s
		}
	}
	if bestScore < 0 {
		return "", 0
	}
	return best, bestScore
}

// BestMatch 没有候选或最佳得分 <= 阈值时返回 false；每次尝试都写入审计文件
func (m *Matcher) BestMatch(target string, candidates []string) (string, bool) {
	best, score := m.Score(target, candidates)
	ok := len(candidates) > 0 && score > m.threshold

	if m.audit != nil {
		if err := m.audit.Record(target, best, score); err != nil {
			m.logger.WithError(err).WithField("target", target).Warn("写入匹配审计失败")
		}
	}
	if !ok {
		return "", false
	}
	return best, true
}
