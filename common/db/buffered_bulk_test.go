// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package db

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/vadyalex/mongoportal/common/testtype"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBufferedBulkInserterOptions(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	Convey("A new unordered inserter", t, func() {
		bufBulk := NewUnorderedBufferedBulkInserter(nil, 10)

		Convey("should be unordered and validate documents", func() {
			So(*bufBulk.bulkWriteOpts.Ordered, ShouldBeFalse)
			So(bufBulk.BypassesDocumentValidation(), ShouldBeFalse)
		})

		Convey("should bypass validation when asked to", func() {
			So(bufBulk.SetBypassDocumentValidation(true).BypassesDocumentValidation(), ShouldBeTrue)
		})

		Convey("should not write when nothing is buffered", func() {
			result, err := bufBulk.Flush(context.Background())
			So(err, ShouldBeNil)
			So(result, ShouldBeNil)
		})
	})
}

func TestBufferedBulkInserterInserts(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.IntegrationTestType)

	var bufBulk *BufferedBulkInserter
	ctx := context.Background()

	Convey("With a valid session", t, func() {
		opts := testToolOptions()
		err := opts.NormalizeOptionsAndURI()
		So(err, ShouldBeNil)
		provider, err := NewSessionProvider(opts)
		So(provider, ShouldNotBeNil)
		So(err, ShouldBeNil)
		session, err := provider.GetSession()
		So(session, ShouldNotBeNil)
		So(err, ShouldBeNil)

		Convey("using a test collection and a doc limit of 3", func() {
			testCol := session.Database("mongoportal-test").Collection("bulk1")
			bufBulk = NewUnorderedBufferedBulkInserter(testCol, 3)
			So(bufBulk, ShouldNotBeNil)

			Convey("inserting 10 documents into the BufferedBulkInserter", func() {
				flushCount := 0
				for i := 0; i < 10; i++ {
					result, err := bufBulk.Insert(ctx, bson.D{})
					So(err, ShouldBeNil)
					if bufBulk.docCount%3 == 0 {
						flushCount++
						So(result, ShouldNotBeNil)
						So(result.InsertedCount, ShouldEqual, 3)
					} else {
						So(result, ShouldBeNil)
					}
				}

				Convey("should have flushed 3 times with one doc still buffered", func() {
					So(flushCount, ShouldEqual, 3)
					So(bufBulk.docCount, ShouldEqual, 1)
				})
			})
		})

		Convey("using a test collection and a doc limit of 1", func() {
			testCol := session.Database("mongoportal-test").Collection("bulk2")
			bufBulk = NewUnorderedBufferedBulkInserter(testCol, 1)
			So(bufBulk, ShouldNotBeNil)

			Convey("inserting 10 documents into the BufferedBulkInserter and flushing", func() {
				for i := 0; i < 10; i++ {
					result, err := bufBulk.Insert(ctx, bson.D{})
					So(err, ShouldBeNil)
					So(result, ShouldNotBeNil)
					So(result.InsertedCount, ShouldEqual, 1)
				}
				result, err := bufBulk.Flush(ctx)
				So(err, ShouldBeNil)
				So(result, ShouldBeNil)

				Convey("should have no docs buffered", func() {
					So(bufBulk.docCount, ShouldEqual, 0)
				})
			})
		})

		Convey("using a test collection and a doc limit of 100", func() {
			testCol := session.Database("mongoportal-test").Collection("bulk3")
			bufBulk = NewUnorderedBufferedBulkInserter(testCol, 100)
			So(bufBulk, ShouldNotBeNil)

			Convey("inserting 10,000 documents into the BufferedBulkInserter and flushing", func() {
				errCnt := 0
				for i := 0; i < 10000; i++ {
					result, err := bufBulk.Insert(ctx, bson.M{"_id": i})
					if err != nil {
						errCnt++
					}
					if (i+1)%1000 == 0 {
						So(result, ShouldNotBeNil)
						So(result.InsertedCount, ShouldEqual, 100)
					}
				}
				So(errCnt, ShouldEqual, 0)
				_, err := bufBulk.Flush(ctx)
				So(err, ShouldBeNil)

				Convey("should have inserted all of the documents", func() {
					count, err := testCol.CountDocuments(ctx, bson.M{})
					So(err, ShouldBeNil)
					So(count, ShouldEqual, 10000)

					testDoc := bson.M{}
					result := testCol.FindOne(ctx, bson.M{"_id": 4772})
					err = result.Decode(&testDoc)
					So(err, ShouldBeNil)
					So(testDoc["_id"], ShouldEqual, 4772)
				})
			})
		})

		Convey("using a test collection and a byte limit of 1", func() {
			testCol := session.Database("mongoportal-test").Collection("bulk4")
			bufBulk = NewUnorderedBufferedBulkInserter(testCol, 1000)
			So(bufBulk, ShouldNotBeNil)
			bufBulk.byteLimit = 1

			Convey("inserting 10 documents into the BufferedBulkInserter", func() {
				for i := 0; i < 10; i++ {
					result, err := bufBulk.Insert(ctx, bson.D{{"foo", "bar"}})
					So(err, ShouldBeNil)
					So(result, ShouldNotBeNil)
					So(result.InsertedCount, ShouldEqual, 1)
				}
			})
		})

		Convey("using a validated collection and bypassing validation", func() {
			db := session.Database("mongoportal-test")
			err := db.RunCommand(ctx, bson.D{
				{"create", "bulk5"},
				{"validator", bson.D{{"n", bson.D{{"$exists", true}}}}},
			}).Err()
			So(err, ShouldBeNil)
			bufBulk = NewUnorderedBufferedBulkInserter(db.Collection("bulk5"), 10).SetBypassDocumentValidation(true)

			Convey("invalid documents should still be inserted", func() {
				for i := 0; i < 5; i++ {
					_, err := bufBulk.Insert(ctx, bson.D{{"_id", i}})
					So(err, ShouldBeNil)
				}
				_, err := bufBulk.Flush(ctx)
				So(err, ShouldBeNil)

				count, err := db.Collection("bulk5").CountDocuments(ctx, bson.D{})
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 5)
			})
		})

		Reset(func() {
			So(session.Database("mongoportal-test").Drop(ctx), ShouldBeNil)
			provider.Close()
		})
	})
}
