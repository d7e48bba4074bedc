package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/rl1809/digital-kanban/internal/adapter/notify"
	"github.com/rl1809/digital-kanban/internal/adapter/storage"
	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/core/service"
	"github.com/rl1809/digital-kanban/internal/port"
)

const (
	partNumber        = "STRESS-PART"
	containerCount    = 20
	containerQuantity = 10
	totalRequests     = 50
	lockTTL           = 10 * time.Second
)

func stressInventory() domain.Inventory {
	inv := domain.Inventory{
		PartNumber:      partNumber,
		PartDescription: "Stress Test Part",
		Location:        domain.LocationEndOfLine,
	}
	for i := 1; i <= containerCount; i++ {
		inv.Containers = append(inv.Containers, domain.Container{
			SerialNumber: fmt.Sprintf("STRESS-%03d", i),
			PartNumber:   partNumber,
			Quantity:     containerQuantity,
			Location:     domain.LocationEndOfLine,
			Status:       domain.ContainerStatusActive,
		})
	}
	return inv
}

// backend uses Redis when REDIS_ADDR is set, otherwise the in-process stores.
func backend(ctx context.Context) (port.InventoryRepository, port.Locker, func()) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		log.Info("REDIS_ADDR not set, using in-memory inventory")
		return storage.NewMemoryInventory(stressInventory()), storage.NewKeyedMutex(), func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}

	adapter := storage.NewRedisAdapter(rdb)
	if err := adapter.SetInventory(ctx, stressInventory()); err != nil {
		log.Fatalf("failed to seed inventory: %v", err)
	}
	return adapter, storage.NewRedisLocker(rdb, lockTTL), func() { rdb.Close() }
}

func main() {
	ctx := context.Background()
	log.SetLevel(log.WarnLevel)

	inventory, locker, cleanup := backend(ctx)
	defer cleanup()

	kanbans := service.NewKanbanService(
		storage.NewMemoryKanbans(),
		inventory,
		storage.NewMemoryJobs(nil, nil),
		locker,
		notify.NewLogNotifier(nil),
	)

	var successCount, insufficientCount, otherCount atomic.Int32
	var mu sync.Mutex
	allocated := make(map[string]string)
	var duplicates []string

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			k, err := kanbans.CreateKanban(ctx, service.CreateKanbanRequest{
				Type:           domain.KanbanTypeWithdrawal,
				WithdrawalType: domain.WithdrawalEndToTPA,
				PartNumber:     partNumber,
				Quantity:       containerQuantity,
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientInventory):
				insufficientCount.Add(1)
				return
			default:
				otherCount.Add(1)
				log.WithError(err).Error("unexpected failure")
				return
			}

			mu.Lock()
			defer mu.Unlock()
			for _, serial := range k.ContainerIDs {
				if owner, taken := allocated[serial]; taken {
					duplicates = append(duplicates, fmt.Sprintf("%s in %s and %s", serial, owner, k.ID))
				}
				allocated[serial] = k.ID
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	insufficient := insufficientCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Containers:       %d x %d\n", containerCount, containerQuantity)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Insufficient:     %d\n", insufficient)
	fmt.Printf("Other Failures:   %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == containerCount && insufficient == totalRequests-containerCount {
		fmt.Printf("PASS: Exactly %d withdrawals succeeded\n", containerCount)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d insufficient, got %d/%d\n",
			containerCount, totalRequests-containerCount, success, insufficient)
	}

	if len(duplicates) == 0 {
		fmt.Println("PASS: No container allocated twice")
	} else {
		fmt.Printf("FAIL: %d double allocations: %v\n", len(duplicates), duplicates)
	}

	inv, err := inventory.GetInventory(ctx, partNumber)
	if err != nil {
		log.Fatalf("failed to read inventory: %v", err)
	}
	remaining := len(inv.ActiveAt(domain.LocationEndOfLine))
	if remaining == 0 {
		fmt.Println("PASS: End of line emptied")
	} else {
		fmt.Printf("FAIL: Expected 0 containers at end of line, got %d\n", remaining)
	}
}
