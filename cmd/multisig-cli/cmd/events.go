package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"multisig-core/internal/event"
	"multisig-core/internal/service/mq"
	"multisig-core/pkg/logger"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "订阅提案生命周期事件 (Online)",
	Long: `从 Redis Streams 或 Kafka 消费 multisig.proposal 事件并逐条打印，Ctrl+C 退出。
--mq 与服务端的 redis.mq_type 保持一致。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Init("development")
		defer logger.Sync()

		mqType, _ := cmd.Flags().GetString("mq")
		group, _ := cmd.Flags().GetString("group")

		consumer, closeFn, err := newConsumer(cmd, mqType, group)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		fmt.Fprintf(os.Stderr, "正在订阅 %s (%s, group=%s) ...\n", event.TopicProposal, mqType, group)
		err = consumer.Subscribe(ctx, event.TopicProposal, func(msg *mq.Message) error {
			return printEvent(out, msg)
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func newConsumer(cmd *cobra.Command, mqType, group string) (mq.Consumer, func() error, error) {
	switch mqType {
	case "kafka":
		brokers, _ := cmd.Flags().GetStringSlice("brokers")
		consumer := mq.NewKafkaConsumer(brokers, group)
		return consumer, consumer.Close, nil
	case "redis":
		addr, _ := cmd.Flags().GetString("redis-addr")
		password, _ := cmd.Flags().GetString("redis-password")
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})
		consumer := mq.NewRedisConsumer(rdb, group, "cli-"+uuid.NewString()[:8])
		return consumer, func() error {
			return multierr.Append(consumer.Close(), rdb.Close())
		}, nil
	default:
		return nil, nil, errors.Errorf("不支持的 mq 类型 %q (redis|kafka)", mqType)
	}
}

// printEvent 解析失败的消息原样打印，不阻塞后续消费
func printEvent(w io.Writer, msg *mq.Message) error {
	var evt event.ProposalEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		_, werr := fmt.Fprintf(w, "[%s] key=%s raw=%s\n", msg.ID, msg.Key, strings.TrimSpace(string(msg.Payload)))
		return werr
	}

	line := fmt.Sprintf("[%s] %s id=%s account=%s status=%s weight=%d/%d",
		evt.OccurredAt.Format("2006-01-02 15:04:05"), evt.Type, evt.ID, evt.AccountID,
		evt.Status, evt.CollectedWeight, evt.RequiredThreshold)
	if evt.NetworkTransactionID != "" {
		line += " tx=" + evt.NetworkTransactionID
	}
	if evt.FailureReason != "" {
		line += " reason=" + evt.FailureReason
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().String("mq", "redis", "消息队列类型 (redis|kafka)")
	eventsCmd.Flags().String("group", "multisig-cli", "消费组")
	eventsCmd.Flags().String("redis-addr", "localhost:6379", "Redis 地址")
	eventsCmd.Flags().String("redis-password", "", "Redis 密码")
	eventsCmd.Flags().StringSlice("brokers", []string{"localhost:9092"}, "Kafka brokers")
}
