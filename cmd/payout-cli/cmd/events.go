package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"payout-core/internal/service/mq"
	"payout-core/pkg/config"
	"payout-core/pkg/database"
	"payout-core/pkg/logger"

	"github.com/spf13/cobra"
)

// eventsCmd 消费付款事件流，用于调试下游集成
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "实时消费付款事件流",
	Long:  `订阅付款事件 Topic 并打印收到的每条事件。按配置里的 mq_type 选择 Kafka 或 Redis Streams。`,
	Run: func(cmd *cobra.Command, args []string) {
		config.Init()
		logger.Init(config.Global.App.Env)
		defer logger.Sync()

		group, _ := cmd.Flags().GetString("group")
		topic := config.Global.Kafka.Topic

		var consumer mq.Consumer
		if config.Global.Redis.MQType == "kafka" {
			fmt.Printf("使用 Kafka 消费 %s (group=%s)...\n", topic, group)
			consumer = mq.NewKafkaConsumer(config.Global.Kafka.Brokers, group)
		} else {
			rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
			if err != nil {
				fmt.Printf("Redis 连接失败: %v\n", err)
				os.Exit(1)
			}
			defer rdb.Close()
			fmt.Printf("使用 Redis Streams 消费 %s (group=%s)...\n", topic, group)
			consumer = mq.NewRedisConsumer(rdb, group, "cli-0")
		}
		defer consumer.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			cancel()
		}()

		err := consumer.Subscribe(ctx, topic, func(msg *mq.Message) error {
			fmt.Printf("[%s] %s\n", msg.ID, string(msg.Payload))
			return nil
		})
		if err != nil {
			fmt.Printf("消费失败: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().StringP("group", "g", "payout_events_cli", "消费者组名")
}
