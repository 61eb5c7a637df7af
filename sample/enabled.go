// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

//go:build !cugraph_nosampling

package sample

// Enabled reports whether the sampling primitive is compiled into
// this build. Builds tagged cugraph_nosampling exclude it, mirroring
// platforms whose compute backend lacks the primitive; sampling calls
// then fail with errors.NotSupported instead of silently returning
// empty results.
const enabled = true
