package syncer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bnb-chain/blob-stats/chain"
	"github.com/bnb-chain/blob-stats/config"
	"github.com/bnb-chain/blob-stats/db"
)

var chainID = big.NewInt(1)

type fixedFee struct {
	fee, excess uint64
}

func (f fixedFee) HeaderBlobFee(*types.Header) (uint64, uint64) {
	return f.fee, f.excess
}

type account struct {
	key   *ecdsa.PrivateKey
	addr  common.Address
	nonce uint64
}

func newAccount(t *testing.T) *account {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &account{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (a *account) blobTx(t *testing.T, id *big.Int, blobs int) *types.Transaction {
	hashes := make([]common.Hash, 0, blobs)
	for i := 0; i < blobs; i++ {
		h := crypto.Keccak256Hash(a.addr.Bytes(), new(big.Int).SetUint64(a.nonce).Bytes(), []byte{byte(i)})
		h[0] = 0x01
		hashes = append(hashes, h)
	}
	tx, err := types.SignNewTx(a.key, types.NewCancunSigner(id), &types.BlobTx{
		ChainID:    uint256.MustFromBig(id),
		Nonce:      a.nonce,
		GasTipCap:  uint256.NewInt(1),
		GasFeeCap:  uint256.NewInt(100),
		Gas:        21000,
		To:         common.HexToAddress("0xff00000000000000000000000000000000008453"),
		Value:      uint256.NewInt(0),
		BlobFeeCap: uint256.NewInt(1e10),
		BlobHashes: hashes,
	})
	require.NoError(t, err)
	a.nonce++
	return tx
}

func (a *account) legacyTx(t *testing.T) *types.Transaction {
	tx, err := types.SignNewTx(a.key, types.NewCancunSigner(chainID), &types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     a.nonce,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(100),
		Gas:       21000,
	})
	require.NoError(t, err)
	a.nonce++
	return tx
}

func makeBlock(number, ts uint64, parent common.Hash, fork byte, txs ...*types.Transaction) *types.Block {
	excess := uint64(0)
	return types.NewBlockWithHeader(&types.Header{
		Number:        new(big.Int).SetUint64(number),
		Time:          ts,
		ParentHash:    parent,
		Difficulty:    common.Big0,
		Extra:         []byte{fork},
		ExcessBlobGas: &excess,
	}).WithBody(txs, nil)
}

func newTestDao(t *testing.T, mode db.RevertMode) db.BlobDao {
	path := filepath.Join(t.TempDir(), "blob_stats.db")
	gdb, err := gorm.Open(sqlite.Open(config.SqliteDSN(path, 0)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	db.AutoMigrateDB(gdb)
	return db.NewBlobSvcDB(gdb, mode)
}

func newTestSyncer(t *testing.T, dao db.BlobDao, fee uint64) (*BlobSyncer, *chain.ChannelSource) {
	src := chain.NewChannelSource(16)
	return NewBlobSyncer(dao, src, types.NewCancunSigner(chainID), fixedFee{fee: fee, excess: 1 << 20}), src
}

func TestProcess_SingleBlobTransaction(t *testing.T) {
	dao := newTestDao(t, db.RevertCascade)
	s, src := newTestSyncer(t, dao, 5e9)
	sender := newAccount(t)
	tx := sender.blobTx(t, chainID, 3)
	block := makeBlock(100, 1700000000, common.Hash{}, 0, tx)

	require.NoError(t, s.Process(context.Background(), chain.NewCommitted(chain.NewSegment(block))))

	stored, err := dao.GetBlock(100)
	require.NoError(t, err)
	require.Equal(t, uint64(3), stored.TotalBlobs)
	require.Equal(t, uint64(1), stored.TxCount)
	require.Equal(t, uint64(5e9), stored.GasPrice)
	require.Equal(t, uint64(3*131072), stored.GasUsed)
	require.Equal(t, uint64(1<<20), stored.ExcessBlobGas)
	require.Equal(t, uint64(1700000000), stored.BlockTimestamp)
	require.Equal(t, block.Hash().Hex(), stored.BlockHash)

	senders, err := dao.GetTopSenders(10)
	require.NoError(t, err)
	require.Len(t, senders, 1)
	require.Equal(t, strings.ToLower(sender.addr.Hex()), senders[0].Address)
	require.Equal(t, uint64(1), senders[0].TxCount)
	require.Equal(t, uint64(3), senders[0].TotalBlobs)

	txs, err := dao.GetTransactionsByBlocks([]uint64{100})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, tx.Hash().Hex(), txs[0].TxHash)
	require.Equal(t, uint64(5e9), txs[0].GasPrice)

	hashes, err := dao.GetBlobHashes([]string{tx.Hash().Hex()})
	require.NoError(t, err)
	expected := make([]string, 0, 3)
	for _, h := range tx.BlobHashes() {
		expected = append(expected, h.Hex())
	}
	require.Equal(t, expected, hashes[tx.Hash().Hex()])

	height, hash, acked := src.Finished()
	require.True(t, acked)
	require.Equal(t, uint64(100), height)
	require.Equal(t, block.Hash(), hash)
}

func TestProcess_SkipsUnrecoverableSenderAndNonBlobTxs(t *testing.T) {
	dao := newTestDao(t, db.RevertCascade)
	s, _ := newTestSyncer(t, dao, 7)
	good := newAccount(t)
	foreign := newAccount(t)
	block := makeBlock(1, 12, common.Hash{}, 0,
		good.blobTx(t, chainID, 2),
		foreign.blobTx(t, big.NewInt(5), 1),
		good.legacyTx(t),
	)

	require.NoError(t, s.Process(context.Background(), chain.NewCommitted(chain.NewSegment(block))))

	stored, err := dao.GetBlock(1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stored.TxCount)
	require.Equal(t, uint64(2), stored.TotalBlobs)

	txs, err := dao.GetTransactionsByBlocks([]uint64{1})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, strings.ToLower(good.addr.Hex()), txs[0].Sender)
}

func TestProcess_EmptyBlockStillStored(t *testing.T) {
	dao := newTestDao(t, db.RevertCascade)
	s, _ := newTestSyncer(t, dao, 3)
	require.NoError(t, s.Process(context.Background(), chain.NewCommitted(chain.NewSegment(makeBlock(8, 96, common.Hash{}, 0)))))

	stored, err := dao.GetBlock(8)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Zero(t, stored.TotalBlobs)
	require.Equal(t, uint64(3), stored.GasPrice)
}

func TestProcess_ReplayIsIdempotent(t *testing.T) {
	dao := newTestDao(t, db.RevertCascade)
	s, _ := newTestSyncer(t, dao, 9)
	sender := newAccount(t)
	n := chain.NewCommitted(chain.NewSegment(
		makeBlock(1, 12, common.Hash{}, 0, sender.blobTx(t, chainID, 2)),
		makeBlock(2, 24, common.Hash{}, 0, sender.blobTx(t, chainID, 1)),
	))

	require.NoError(t, s.Process(context.Background(), n))
	before, err := dao.GetBlocksInRange(1, 2)
	require.NoError(t, err)
	beforeTxs, err := dao.GetTransactionsByBlocks([]uint64{1, 2})
	require.NoError(t, err)

	require.NoError(t, s.Process(context.Background(), n))
	after, err := dao.GetBlocksInRange(1, 2)
	require.NoError(t, err)
	afterTxs, err := dao.GetTransactionsByBlocks([]uint64{1, 2})
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, beforeTxs, afterTxs)
}

func TestProcess_ReorgRevertsOldThenAppliesNew(t *testing.T) {
	dao := newTestDao(t, db.RevertCascade)
	s, src := newTestSyncer(t, dao, 1)
	alice := newAccount(t)
	bob := newAccount(t)

	b1 := makeBlock(1, 12, common.Hash{}, 0, alice.blobTx(t, chainID, 1))
	b2a := makeBlock(2, 24, b1.Hash(), 0, alice.blobTx(t, chainID, 4))
	require.NoError(t, s.Process(context.Background(), chain.NewCommitted(chain.NewSegment(b1, b2a))))

	b2b := makeBlock(2, 24, b1.Hash(), 1, bob.blobTx(t, chainID, 2))
	b3b := makeBlock(3, 36, b2b.Hash(), 1)
	require.NoError(t, s.Process(context.Background(),
		chain.NewReorged(chain.NewSegment(b2a), chain.NewSegment(b2b, b3b))))

	stored, err := dao.GetBlock(2)
	require.NoError(t, err)
	require.Equal(t, uint64(2), stored.TotalBlobs)
	require.Equal(t, b2b.Hash().Hex(), stored.BlockHash)
	txs, err := dao.GetTransactionsByBlocks([]uint64{2})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, strings.ToLower(bob.addr.Hex()), txs[0].Sender)

	senders, err := dao.GetTopSenders(10)
	require.NoError(t, err)
	require.Len(t, senders, 2)
	require.Equal(t, strings.ToLower(bob.addr.Hex()), senders[0].Address)
	require.Equal(t, uint64(1), senders[1].TotalBlobs)

	require.Equal(t, []uint64{2, 3}, src.Acks())
}

func TestProcess_RevertedDoesNotAck(t *testing.T) {
	dao := newTestDao(t, db.RevertCascade)
	s, src := newTestSyncer(t, dao, 1)
	sender := newAccount(t)
	b1 := makeBlock(1, 12, common.Hash{}, 0, sender.blobTx(t, chainID, 1))
	require.NoError(t, s.Process(context.Background(), chain.NewCommitted(chain.NewSegment(b1))))
	require.NoError(t, s.Process(context.Background(), chain.NewReverted(chain.NewSegment(b1))))

	stored, err := dao.GetBlock(1)
	require.NoError(t, err)
	require.Nil(t, stored)
	require.Equal(t, []uint64{1}, src.Acks())
}

func TestProcess_RevertThenRecommitRestoresBlock(t *testing.T) {
	for _, mode := range []db.RevertMode{db.RevertCascade, db.RevertBlockOnly} {
		dao := newTestDao(t, mode)
		s, _ := newTestSyncer(t, dao, 4)
		sender := newAccount(t)
		b1 := makeBlock(1, 12, common.Hash{}, 0, sender.blobTx(t, chainID, 2))
		ctx := context.Background()

		require.NoError(t, s.Process(ctx, chain.NewCommitted(chain.NewSegment(b1))))
		before, err := dao.GetBlock(1)
		require.NoError(t, err)
		require.NoError(t, s.Process(ctx, chain.NewReverted(chain.NewSegment(b1))))
		require.NoError(t, s.Process(ctx, chain.NewCommitted(chain.NewSegment(b1))))
		after, err := dao.GetBlock(1)
		require.NoError(t, err)
		require.Equal(t, before, after)
	}
}

type mockDao struct {
	db.BlobDao
	mock.Mock
}

func (m *mockDao) ApplyBlock(batch *db.BlockBatch) error {
	args := m.Called(batch)
	return args.Error(0)
}

func (m *mockDao) RevertBlock(blockNumber uint64) error {
	args := m.Called(blockNumber)
	return args.Error(0)
}

func TestProcess_StoreErrorSkipsAck(t *testing.T) {
	dao := &mockDao{}
	boom := errors.New("disk full")
	dao.On("ApplyBlock", mock.MatchedBy(func(b *db.BlockBatch) bool { return b.Block.BlockNumber == 1 })).Return(nil)
	dao.On("ApplyBlock", mock.MatchedBy(func(b *db.BlockBatch) bool { return b.Block.BlockNumber == 2 })).Return(boom)
	s, src := newTestSyncer(t, dao, 1)

	err := s.Process(context.Background(), chain.NewCommitted(chain.NewSegment(
		makeBlock(1, 12, common.Hash{}, 0),
		makeBlock(2, 24, common.Hash{}, 0),
		makeBlock(3, 36, common.Hash{}, 0),
	)))
	require.ErrorIs(t, err, boom)
	_, _, acked := src.Finished()
	require.False(t, acked)
	dao.AssertNumberOfCalls(t, "ApplyBlock", 2)
}

func TestProcess_RevertErrorStopsBeforeCommit(t *testing.T) {
	dao := &mockDao{}
	boom := errors.New("locked")
	dao.On("RevertBlock", uint64(5)).Return(boom)
	s, src := newTestSyncer(t, dao, 1)

	err := s.Process(context.Background(), chain.NewReorged(
		chain.NewSegment(makeBlock(5, 60, common.Hash{}, 0)),
		chain.NewSegment(makeBlock(5, 60, common.Hash{}, 1)),
	))
	require.ErrorIs(t, err, boom)
	dao.AssertNotCalled(t, "ApplyBlock", mock.Anything)
	require.Empty(t, src.Acks())
}

type failingSource struct {
	err error
}

func (f failingSource) Next(context.Context) (*chain.Notification, error) {
	return nil, f.err
}

func (f failingSource) FinishedHeight(context.Context, uint64, common.Hash) error {
	return nil
}

func TestStartLoop(t *testing.T) {
	dao := newTestDao(t, db.RevertCascade)
	s, src := newTestSyncer(t, dao, 1)
	sender := newAccount(t)
	ctx := context.Background()

	b1 := makeBlock(1, 12, common.Hash{}, 0, sender.blobTx(t, chainID, 1))
	b2 := makeBlock(2, 24, b1.Hash(), 0, sender.blobTx(t, chainID, 2))
	require.NoError(t, src.Send(ctx, chain.NewCommitted(chain.NewSegment(b1))))
	require.NoError(t, src.Send(ctx, chain.NewCommitted(chain.NewSegment(b2))))
	src.Close()

	require.NoError(t, s.StartLoop(ctx))
	require.Equal(t, []uint64{1, 2}, src.Acks())
	stats, err := dao.GetStats()
	require.NoError(t, err)
	require.Equal(t, uint64(3), stats.TotalBlobs)
}

func TestStartLoop_SourceError(t *testing.T) {
	dao := newTestDao(t, db.RevertCascade)
	s := NewBlobSyncer(dao, failingSource{err: chain.ErrSourceClosed}, types.NewCancunSigner(chainID), fixedFee{})
	err := s.StartLoop(context.Background())
	require.ErrorIs(t, err, chain.ErrSourceClosed)
}

func TestStartLoop_ContextCancelled(t *testing.T) {
	dao := newTestDao(t, db.RevertCascade)
	s, _ := newTestSyncer(t, dao, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.StartLoop(ctx))
}
