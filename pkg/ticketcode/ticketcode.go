package ticketcode

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // 去除易混淆字元 (0/O, 1/I)

// Generator 產生票券代碼與 QR payload。核心只要求「不重複的不透明字串」，
// 圖像渲染是外部協作者的事。
type Generator interface {
	Code() string
	QRPayload(code string, ticketID uuid.UUID) string
}

type RandomGenerator struct {
	prefix string
}

func NewRandomGenerator(prefix string) Generator {
	if prefix == "" {
		prefix = "TKT"
	}
	return &RandomGenerator{prefix: prefix}
}

// Code 產生人類可讀代碼，例如 TKT-7MQ2KX9WBF4T。
// 12 個字元、32 字母表，活躍票券集合內碰撞機率可忽略，
// 資料庫 unique 約束擋最後一關。
func (g *RandomGenerator) Code() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("ticketcode: crypto/rand unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return fmt.Sprintf("%s-%s", g.prefix, string(buf))
}

// QRPayload 組出不透明的掃描內容：代碼 + 票券 UUID + 簽發時間戳
func (g *RandomGenerator) QRPayload(code string, ticketID uuid.UUID) string {
	raw := fmt.Sprintf("%s|%s|%d", code, ticketID, time.Now().UTC().Unix())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}
