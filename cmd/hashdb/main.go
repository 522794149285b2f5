package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/bietkhonhungvandi212/hashdb/internal/container/hash"
	"github.com/bietkhonhungvandi212/hashdb/internal/storage/buffer"
	"github.com/bietkhonhungvandi212/hashdb/internal/storage/disk"
	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML options file")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	opts := util.DefaultOptions()
	if *configPath != "" {
		var err error
		opts, err = util.LoadOptions(*configPath)
		if err != nil {
			logrus.Fatalf("load options: %v", err)
		}
	}

	dm, err := disk.NewFileDiskManager(opts.Path)
	if err != nil {
		logrus.Fatalf("open disk manager: %v", err)
	}
	scheduler := disk.NewPooledDiskScheduler(dm, opts.SchedulerWorkers)

	var replacer buffer.Replacer
	switch opts.ReplacerPolicy {
	case "clock":
		replacer = buffer.NewClockReplacer(opts.PoolSize)
	default:
		replacer = buffer.NewLRUKReplacer(opts.PoolSize, opts.ReplacerK)
	}
	bpm := buffer.NewBufferPoolManager(opts.PoolSize, dm, scheduler, replacer)

	table, err := hash.NewDiskExtendibleHashTable("demo", bpm, util.CompareUint64, util.XXHash32,
		opts.HeaderMaxDepth, opts.DirectoryMaxDepth, opts.BucketMaxSize)
	if err != nil {
		logrus.Fatalf("create hash table: %v", err)
	}

	const n = 1000
	for key := uint64(0); key < n; key++ {
		if !table.Insert(key, key*key) {
			logrus.Fatalf("insert key %d failed", key)
		}
	}
	missing := 0
	for key := uint64(0); key < n; key++ {
		if value, ok := table.GetValue(key); !ok || value != key*key {
			missing++
		}
	}
	if err := table.VerifyIntegrity(); err != nil {
		logrus.Fatalf("integrity check: %v", err)
	}

	bpm.FlushAllPages()
	scheduler.ShutDown()
	if err := dm.ShutDown(); err != nil {
		logrus.Fatalf("shut down disk manager: %v", err)
	}

	logrus.Infof("inserted %d keys, %d lookups missed, global depth %d", n, missing, table.GlobalDepth())
}
