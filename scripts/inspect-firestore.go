//go:build ignore

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

func main() {
	projectID := flag.String("project", "", "GCP project ID")
	collection := flag.String("collection", "calendar", "Firestore collection name")
	year := flag.Int("year", 0, "Filter by year (optional)")
	limit := flag.Int("limit", 10, "Max documents to return (0 for all)")
	countOnly := flag.Bool("count", false, "Only show counts per year")
	flag.Parse()

	if *projectID == "" {
		log.Fatal("-project is required")
	}

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer client.Close()

	coll := client.Collection(*collection)

	if *countOnly {
		showCounts(ctx, coll)
		return
	}

	var query firestore.Query = coll.Query
	if *year != 0 {
		query = coll.Where("year", "==", *year)
	}
	query = query.OrderBy("date", firestore.Asc)
	if *limit > 0 {
		query = query.Limit(*limit)
	}

	iter := query.Documents(ctx)
	count := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Fatalf("Error iterating documents: %v", err)
		}

		jsonData, _ := json.MarshalIndent(doc.Data(), "", "  ")
		fmt.Printf("--- Document: %s ---\n%s\n\n", doc.Ref.ID, string(jsonData))
		count++
	}

	fmt.Printf("Total documents shown: %d\n", count)
}

func showCounts(ctx context.Context, coll *firestore.CollectionRef) {
	counts := make(map[int64][2]int)
	total := 0

	iter := coll.Documents(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Fatalf("Error iterating documents: %v", err)
		}

		data := doc.Data()
		year, _ := data["year"].(int64)
		c := counts[year]
		c[0]++
		if holiday, _ := data["is_holiday"].(bool); holiday {
			c[1]++
		}
		counts[year] = c
		total++
	}

	years := make([]int64, 0, len(counts))
	for y := range counts {
		years = append(years, y)
	}
	sort.Slice(years, func(i, j int) bool { return years[i] < years[j] })

	fmt.Printf("%-8s %8s %8s\n", "YEAR", "DAYS", "HOLIDAYS")
	fmt.Println("--------------------------")
	for _, y := range years {
		fmt.Printf("%-8d %8d %8d\n", y, counts[y][0], counts[y][1])
	}
	fmt.Println("--------------------------")
	fmt.Printf("%-8s %8d\n", "TOTAL", total)
}
