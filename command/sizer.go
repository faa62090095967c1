package command

// maxCmdOverhead is the allowance the server guarantees on top of
// max_bson_obj_size for command framing overhead.
const maxCmdOverhead = 16382

// MaxNamespaceLength bounds "<db>.<collection>"; exceeding it is an
// InvalidArg error raised before any I/O.
const MaxNamespaceLength = 128

// WillOverflow reports whether adding the next item would exceed either of
// the two server capacity constraints: the combined BSON size limit
// (max_bson + the server's framing allowance), or the max operation count
// per batch.
func WillOverflow(bytesSoFar, nextItemBytes, nWritten int, maxBSON, maxBatch int32) bool {
	maxCmdSize := int(maxBSON) + maxCmdOverhead
	if bytesSoFar+nextItemBytes > maxCmdSize {
		return true
	}
	if maxBatch > 0 && nWritten >= int(maxBatch) {
		return true
	}
	return false
}
