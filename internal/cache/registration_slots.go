package cache

import (
	"context"
	"errors"
	"fmt"

	apperrors "tournament-ticketing/pkg/app_errors"

	"github.com/redis/go-redis/v9"
)

// RegistrationSlotGate 發佈中賽事的名額快取閘門。
// 高併發報名時先在 Redis 原子扣一個名額，擋掉明顯額滿的請求，
// 真正的名額權威仍然是資料庫的版本檢查寫入；這裡只是快速失敗層。
type RegistrationSlotGate interface {
	// WarmUp 賽事發佈時預載開放名額
	WarmUp(ctx context.Context, tournamentID int, slots int) error
	// OpenSlots 查詢目前快取中的剩餘名額
	OpenSlots(ctx context.Context, tournamentID int) (int, error)
	// ReserveSlot 原子扣減一個名額並記錄使用者 (Lua)。
	// 快取沒有這場賽事時回傳 ok=true 放行，交給資料庫裁決。
	ReserveSlot(ctx context.Context, tournamentID int, userID int) (bool, error)
	// ReleaseSlot 資料庫寫入失敗後回滾名額與使用者紀錄 (Lua)
	ReleaseSlot(ctx context.Context, tournamentID int, userID int) error
	// Invalidate 賽事離開 PUBLISHED 後移除快取
	Invalidate(ctx context.Context, tournamentID int) error
}

type RegistrationSlotGateImpl struct {
	client *redis.Client
}

func NewRegistrationSlotGate(client *redis.Client) RegistrationSlotGate {
	return &RegistrationSlotGateImpl{
		client: client,
	}
}

// 名額 key
func (g *RegistrationSlotGateImpl) slotsKey(tournamentID int) string {
	return fmt.Sprintf("tournament:%d:slots", tournamentID)
}

// 已報名使用者紀錄的 key
func (g *RegistrationSlotGateImpl) usersKey(tournamentID int) string {
	return fmt.Sprintf("tournament:%d:registrants", tournamentID)
}

func (g *RegistrationSlotGateImpl) WarmUp(ctx context.Context, tournamentID int, slots int) error {
	if slots < 0 {
		return apperrors.ErrInvalidInput
	}
	return g.client.Set(ctx, g.slotsKey(tournamentID), slots, 0).Err()
}

func (g *RegistrationSlotGateImpl) OpenSlots(ctx context.Context, tournamentID int) (int, error) {
	val, err := g.client.Get(ctx, g.slotsKey(tournamentID)).Int()
	if err == redis.Nil {
		return -1, apperrors.ErrTournamentNotFound
	}
	return val, err
}

/*
ReserveSlot 扣減名額 (Lua 確保原子性)
1. 檢查快取是否存在，不存在就放行
2. 檢查該使用者是否已佔過名額
3. 檢查剩餘名額
4. 執行扣減與紀錄
*/
func (g *RegistrationSlotGateImpl) ReserveSlot(ctx context.Context, tournamentID int, userID int) (bool, error) {
	key := g.slotsKey(tournamentID)
	usersKey := g.usersKey(tournamentID)

	script := `
		local slots_key = KEYS[1]
		local users_key = KEYS[2]
		local user_id = ARGV[1]

		local slots = redis.call('GET', slots_key)
		if not slots then
			return 2 -- 快取未預熱，放行給資料庫裁決
		end

		if redis.call('SISMEMBER', users_key, user_id) == 1 then
			return -2 -- 錯誤：同一使用者重複佔名額
		end

		if tonumber(slots) <= 0 then
			return -1 -- 錯誤：名額已滿
		end

		redis.call('DECR', slots_key)
		redis.call('SADD', users_key, user_id)

		return 1 -- 佔位成功
	`

	result, err := g.client.Eval(ctx, script, []string{key, usersKey}, userID).Result()
	if err != nil {
		return false, err
	}

	code, ok := result.(int64)
	if !ok {
		return false, errors.New("unexpected result")
	}

	switch code {
	case 1, 2:
		return true, nil
	case -1:
		return false, apperrors.ErrCapacityExceeded
	case -2:
		return false, apperrors.ErrInvalidInput
	default:
		return false, errors.New("unexpected result")
	}
}

func (g *RegistrationSlotGateImpl) ReleaseSlot(ctx context.Context, tournamentID int, userID int) error {
	key := g.slotsKey(tournamentID)
	usersKey := g.usersKey(tournamentID)

	script := `
		local slots_key = KEYS[1]
		local users_key = KEYS[2]
		local user_id = ARGV[1]

		-- 只有快取存在且該使用者確實佔過名額才回滾
		if redis.call('GET', slots_key) and redis.call('SREM', users_key, user_id) == 1 then
			redis.call('INCR', slots_key)
		end

		return 1
	`

	return g.client.Eval(ctx, script, []string{key, usersKey}, userID).Err()
}

func (g *RegistrationSlotGateImpl) Invalidate(ctx context.Context, tournamentID int) error {
	return g.client.Del(ctx, g.slotsKey(tournamentID), g.usersKey(tournamentID)).Err()
}
