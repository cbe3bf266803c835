package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"

	"main/internal/recorder"
	"main/internal/schema"
)

func main() {
	dir := flag.String("dir", "testdata/wal", "WAL directory")
	prefix := flag.String("prefix", "", "WAL file prefix (default: wal)")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "Max payload size in bytes (0=unlimited)")
	decode := flag.Bool("decode", false, "Print decoded payloads")
	flag.Parse()

	src, err := recorder.NewSource(recorder.SourceConfig{
		Dir:             *dir,
		FilePrefix:      *prefix,
		DisableChecksum: *noChecksum,
		MaxPayloadSize:  *maxPayload,
	})
	if err != nil {
		log.Fatalf("wal source init failed: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	counts := make(map[schema.Topic]int)
	var index int
	for {
		m, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("read failed at record %d: %v", index+1, err)
		}
		index++
		counts[m.Header.Topic]++
		fmt.Printf("%06d seq=%d topic=%s source=%d ts_event=%d ts_recv=%d\n",
			index, m.Header.Seq, m.Header.Topic, m.Header.Source, m.Header.TsEvent, m.Header.TsRecv)
		if *decode {
			fmt.Printf("  %+v\n", m.Payload)
		}
	}

	fmt.Printf("total=%d\n", index)
	for topic, count := range counts {
		fmt.Printf("  %s=%d\n", topic, count)
	}
}
