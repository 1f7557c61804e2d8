package ledger

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const notifyTimeout = 2 * time.Second

// RedisNotifier publishes balance-changed events over Redis Pub/Sub so
// connected realtime listeners can refresh displayed balances.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// BalanceChannel names the per-user notification channel.
func BalanceChannel(userID uint) string {
	return "balance:" + strconv.FormatUint(uint64(userID), 10)
}

type balanceEvent struct {
	UserID  uint   `json:"user_id"`
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

// BalanceChanged is best-effort: failures are logged and dropped, never
// propagated back into the ledger.
func (n *RedisNotifier) BalanceChanged(ctx context.Context, userID uint, asset string, balance decimal.Decimal) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	payload, err := json.Marshal(balanceEvent{UserID: userID, Asset: asset, Balance: balance.String()})
	if err != nil {
		log.Printf("notifier: marshal balance event for user %d: %v", userID, err)
		return
	}
	if err := n.client.Publish(ctx, BalanceChannel(userID), payload).Err(); err != nil {
		log.Printf("notifier: publish balance event for user %d: %v", userID, err)
	}
}
