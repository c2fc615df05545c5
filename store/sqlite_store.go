package store

import (
	"time"

	"github.com/wxcuop/pyfixmsg-plus/fix"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// messageRow is the gorm model backing the `messages` table spec.md §6
// names, extended with a direction column per the §9 recommendation so
// inbound and outbound records at the same seqNum don't collide.
type messageRow struct {
	BeginString  string `gorm:"primaryKey"`
	SenderCompID string `gorm:"primaryKey"`
	TargetCompID string `gorm:"primaryKey"`
	Direction    uint8  `gorm:"primaryKey"`
	MsgSeqNum    int    `gorm:"primaryKey"`
	Body         []byte
	Timestamp    time.Time
}

func (messageRow) TableName() string { return "messages" }

// archiveRow backs `messages_archive`, primary-keyed including ArchivedAt
// per spec.md §6.
type archiveRow struct {
	BeginString  string `gorm:"primaryKey"`
	SenderCompID string `gorm:"primaryKey"`
	TargetCompID string `gorm:"primaryKey"`
	Direction    uint8  `gorm:"primaryKey"`
	MsgSeqNum    int    `gorm:"primaryKey"`
	ArchivedAt   time.Time `gorm:"primaryKey"`
	Body         []byte
	Timestamp    time.Time
}

func (archiveRow) TableName() string { return "messages_archive" }

type sequenceRow struct {
	BeginString  string `gorm:"primaryKey"`
	SenderCompID string `gorm:"primaryKey"`
	TargetCompID string `gorm:"primaryKey"`
	NextIncoming int
	NextOutgoing int
}

func (sequenceRow) TableName() string { return "sequence_state" }

// SQLiteStore is the Store backend for MessageStoreType "sqlite", grounded
// on Aidin1998-finalex's use of gorm.io/driver/sqlite for embedded
// relational persistence.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) a sqlite database file at path and
// migrates its schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, &Err{Type: Unavailable, Detail: path, Cause: err}
	}
	if err := db.AutoMigrate(&messageRow{}, &archiveRow{}, &sequenceRow{}); err != nil {
		return nil, &Err{Type: Unavailable, Detail: "migrate", Cause: err}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Store(id fix.SessionID, seqNum int, direction Direction, raw []byte, ts time.Time) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing messageRow
		found := tx.Where(&messageRow{
			BeginString: id.BeginString, SenderCompID: id.SenderCompID,
			TargetCompID: id.TargetCompID, Direction: uint8(direction), MsgSeqNum: seqNum,
		}).Take(&existing)

		if found.Error == nil {
			archived := archiveRow{
				BeginString: existing.BeginString, SenderCompID: existing.SenderCompID,
				TargetCompID: existing.TargetCompID, Direction: existing.Direction,
				MsgSeqNum: existing.MsgSeqNum, ArchivedAt: time.Now(),
				Body: existing.Body, Timestamp: existing.Timestamp,
			}
			if err := tx.Create(&archived).Error; err != nil {
				return err
			}
		} else if found.Error != gorm.ErrRecordNotFound {
			return found.Error
		}

		row := messageRow{
			BeginString: id.BeginString, SenderCompID: id.SenderCompID,
			TargetCompID: id.TargetCompID, Direction: uint8(direction),
			MsgSeqNum: seqNum, Body: raw, Timestamp: ts,
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}

		return s.bumpCounterTx(tx, id, direction, seqNum)
	})
	if err != nil {
		return &Err{Type: Unavailable, Session: id.String(), Detail: "store", Cause: err}
	}
	return nil
}

func (s *SQLiteStore) bumpCounterTx(tx *gorm.DB, id fix.SessionID, direction Direction, seqNum int) error {
	var seq sequenceRow
	res := tx.Where(&sequenceRow{BeginString: id.BeginString, SenderCompID: id.SenderCompID, TargetCompID: id.TargetCompID}).Take(&seq)
	if res.Error == gorm.ErrRecordNotFound {
		seq = sequenceRow{BeginString: id.BeginString, SenderCompID: id.SenderCompID, TargetCompID: id.TargetCompID, NextIncoming: 1, NextOutgoing: 1}
	} else if res.Error != nil {
		return res.Error
	}

	if direction == Inbound && seqNum+1 > seq.NextIncoming {
		seq.NextIncoming = seqNum + 1
	}
	if direction == Outbound && seqNum+1 > seq.NextOutgoing {
		seq.NextOutgoing = seqNum + 1
	}
	return tx.Save(&seq).Error
}

func (s *SQLiteStore) Get(id fix.SessionID, seqNum int, direction Direction) (*StoredRecord, error) {
	var row messageRow
	res := s.db.Where(&messageRow{
		BeginString: id.BeginString, SenderCompID: id.SenderCompID,
		TargetCompID: id.TargetCompID, Direction: uint8(direction), MsgSeqNum: seqNum,
	}).Take(&row)
	if res.Error == gorm.ErrRecordNotFound {
		return nil, &Err{Type: KeyNotFound, Session: id.String(), Detail: direction.String()}
	}
	if res.Error != nil {
		return nil, &Err{Type: Unavailable, Session: id.String(), Cause: res.Error}
	}
	return &StoredRecord{Session: id, SeqNum: row.MsgSeqNum, Direction: direction, Raw: row.Body, Timestamp: row.Timestamp}, nil
}

func (s *SQLiteStore) Range(id fix.SessionID, direction Direction, from, to int) ([]*StoredRecord, error) {
	if to == 0 {
		next, err := s.nextSeq(id, direction)
		if err != nil {
			return nil, err
		}
		to = next - 1
	}

	var rows []messageRow
	res := s.db.Where("begin_string = ? AND sender_comp_id = ? AND target_comp_id = ? AND direction = ? AND msg_seq_num BETWEEN ? AND ?",
		id.BeginString, id.SenderCompID, id.TargetCompID, uint8(direction), from, to).
		Order("msg_seq_num asc").Find(&rows)
	if res.Error != nil {
		return nil, &Err{Type: Unavailable, Session: id.String(), Cause: res.Error}
	}

	out := make([]*StoredRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, &StoredRecord{Session: id, SeqNum: r.MsgSeqNum, Direction: direction, Raw: r.Body, Timestamp: r.Timestamp})
	}
	return out, nil
}

func (s *SQLiteStore) FindByField(id fix.SessionID, tag int, value string) ([]*StoredRecord, error) {
	var rows []messageRow
	res := s.db.Where("begin_string = ? AND sender_comp_id = ? AND target_comp_id = ?", id.BeginString, id.SenderCompID, id.TargetCompID).Find(&rows)
	if res.Error != nil {
		return nil, &Err{Type: Unavailable, Session: id.String(), Cause: res.Error}
	}

	needle := []byte(itoaField(tag) + "=" + value + string(rune(fix.SOH)))
	var out []*StoredRecord
	for _, r := range rows {
		if containsBytes(r.Body, needle) {
			out = append(out, &StoredRecord{Session: id, SeqNum: r.MsgSeqNum, Direction: Direction(r.Direction), Raw: r.Body, Timestamp: r.Timestamp})
		}
	}
	return out, nil
}

func itoaField(tag int) string { return itoa(tag) }

func (s *SQLiteStore) nextSeq(id fix.SessionID, direction Direction) (int, error) {
	var seq sequenceRow
	res := s.db.Where(&sequenceRow{BeginString: id.BeginString, SenderCompID: id.SenderCompID, TargetCompID: id.TargetCompID}).Take(&seq)
	if res.Error == gorm.ErrRecordNotFound {
		return 1, nil
	}
	if res.Error != nil {
		return 0, &Err{Type: Unavailable, Session: id.String(), Cause: res.Error}
	}
	if direction == Inbound {
		return seq.NextIncoming, nil
	}
	return seq.NextOutgoing, nil
}

func (s *SQLiteStore) NextIncoming(id fix.SessionID) (int, error) { return s.nextSeq(id, Inbound) }
func (s *SQLiteStore) NextOutgoing(id fix.SessionID) (int, error) { return s.nextSeq(id, Outbound) }

func (s *SQLiteStore) SetIncoming(id fix.SessionID, next int) error { return s.setSeq(id, Inbound, next) }
func (s *SQLiteStore) SetOutgoing(id fix.SessionID, next int) error { return s.setSeq(id, Outbound, next) }

func (s *SQLiteStore) setSeq(id fix.SessionID, direction Direction, next int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var seq sequenceRow
		res := tx.Where(&sequenceRow{BeginString: id.BeginString, SenderCompID: id.SenderCompID, TargetCompID: id.TargetCompID}).Take(&seq)
		if res.Error == gorm.ErrRecordNotFound {
			seq = sequenceRow{BeginString: id.BeginString, SenderCompID: id.SenderCompID, TargetCompID: id.TargetCompID, NextIncoming: 1, NextOutgoing: 1}
		} else if res.Error != nil {
			return res.Error
		}
		if direction == Inbound {
			seq.NextIncoming = next
		} else {
			seq.NextOutgoing = next
		}
		return tx.Save(&seq).Error
	})
}

func (s *SQLiteStore) ResetBoth(id fix.SessionID) error {
	if err := s.setSeq(id, Inbound, 1); err != nil {
		return err
	}
	return s.setSeq(id, Outbound, 1)
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
